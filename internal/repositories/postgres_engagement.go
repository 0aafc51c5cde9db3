package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

const toggleMaxAttempts = 3

// PostgresLikeRepository implements like toggling on PostgreSQL.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// targetColumn maps a like target kind to its column. The column name
// is interpolated into SQL, so it must come from this closed set.
func targetColumn(target models.LikeTarget) (string, error) {
	switch target {
	case models.LikeTargetVideo:
		return "video_id", nil
	case models.LikeTargetComment:
		return "comment_id", nil
	case models.LikeTargetTweet:
		return "tweet_id", nil
	default:
		return "", fmt.Errorf("unknown like target %q", target)
	}
}

// Toggle creates a like for (likedBy, target) if none exists and
// removes it otherwise, reporting true when the outcome is "liked".
//
// Both branches run in one data-modifying statement: the delete and
// the guarded insert see the same snapshot, so the check and the act
// cannot interleave with each other. When two connections race on the
// same pair and both reach the insert, the partial unique index turns
// the loser into a unique violation and the statement is retried; the
// retry then observes the winner's row and takes the delete branch.
// Concurrent toggles on distinct pairs never contend.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, likedBy string, target models.LikeTarget, targetID string) (bool, models.Like, error) {
	column, err := targetColumn(target)
	if err != nil {
		return false, models.Like{}, err
	}

	query := fmt.Sprintf(`
        WITH removed AS (
            DELETE FROM likes
            WHERE liked_by = $1 AND %s = $2
            RETURNING id, created_at
        ), inserted AS (
            INSERT INTO likes (id, liked_by, %s, created_at)
            SELECT $3, $1, $2, $4
            WHERE NOT EXISTS (SELECT 1 FROM removed)
            RETURNING id, created_at
        )
        SELECT true AS liked, id, created_at FROM inserted
        UNION ALL
        SELECT false AS liked, id, created_at FROM removed
    `, column, column)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, models.Like{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var lastErr error
	for attempt := 0; attempt < toggleMaxAttempts; attempt++ {
		row := conn.QueryRow(ctx, query, likedBy, targetID, uuid.NewString(), time.Now().UTC())

		like := models.Like{LikedBy: likedBy, Target: target, TargetID: targetID}
		var liked bool
		err := row.Scan(&liked, &like.ID, &like.CreatedAt)
		if err == nil {
			return liked, like, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// Should not happen: one of the two CTE branches always
			// yields a row.
			return false, models.Like{}, fmt.Errorf("toggle like: no outcome row")
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return false, models.Like{}, ErrNotFound
			case "23505", "40001":
				lastErr = err
				continue
			}
		}

		return false, models.Like{}, fmt.Errorf("toggle like: %w", err)
	}

	return false, models.Like{}, fmt.Errorf("toggle like: exceeded max retries: %w", lastErr)
}

// PostgresSubscriptionRepository implements subscription toggling on PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Toggle subscribes the user to the channel if no subscription exists
// and unsubscribes otherwise, reporting true when the outcome is
// "subscribed". Same single-statement scheme as like toggling.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, subscriberID, channelID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	const query = `
        WITH removed AS (
            DELETE FROM subscriptions
            WHERE subscriber_id = $1 AND channel_id = $2
            RETURNING subscriber_id
        ), inserted AS (
            INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
            SELECT $1, $2, $3
            WHERE NOT EXISTS (SELECT 1 FROM removed)
            RETURNING subscriber_id
        )
        SELECT true AS subscribed FROM inserted
        UNION ALL
        SELECT false AS subscribed FROM removed
    `

	var lastErr error
	for attempt := 0; attempt < toggleMaxAttempts; attempt++ {
		var subscribed bool
		err := conn.QueryRow(ctx, query, subscriberID, channelID, time.Now().UTC()).Scan(&subscribed)
		if err == nil {
			return subscribed, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return false, ErrNotFound
			case "23505", "40001":
				lastErr = err
				continue
			}
		}

		return false, fmt.Errorf("toggle subscription: %w", err)
	}

	return false, fmt.Errorf("toggle subscription: exceeded max retries: %w", lastErr)
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
