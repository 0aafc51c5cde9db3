package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// PostgresViewRepository composes the derived read models with
// multi-stage joins executed inside the database. Projections are
// allow-lists; password_hash and refresh_token are never selected.
type PostgresViewRepository struct {
	pool db.Pool
}

// NewPostgresViewRepository constructs a view repository backed by PostgreSQL.
func NewPostgresViewRepository(pool db.Pool) *PostgresViewRepository {
	return &PostgresViewRepository{pool: pool}
}

// ChannelProfile resolves a channel by username and decorates it with
// subscription aggregates relative to the viewer. viewerID may be
// empty for anonymous requests, in which case IsSubscribed is false.
func (r *PostgresViewRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "views.channel_profile")
	defer span.End()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// NULL viewer never matches, so anonymous viewers read as unsubscribed.
	var viewer any
	if viewerID != "" {
		viewer = viewerID
	}

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id) AS subscribers_count,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS channels_subscribed_to_count,
               EXISTS (
                   SELECT 1 FROM subscriptions s
                   WHERE s.channel_id = u.id AND s.subscriber_id = $2::UUID
               ) AS is_subscribed
        FROM users u
        WHERE u.username = $1
    `, username, viewer)

	var profile models.ChannelProfile
	if err := row.Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.Email,
		&profile.AvatarURL, &profile.CoverImageURL, &profile.SubscribersCount,
		&profile.ChannelsSubscribedToCount, &profile.IsSubscribed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return profile, nil
}

// WatchHistory resolves each entry of the user's watch history to its
// video, inlining the owner's public profile. Most recent watch first.
func (r *PostgresViewRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchEntry, error) {
	ctx, span := logging.StartSpan(ctx, "views.watch_history")
	defer span.End()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.video_url, v.thumbnail_url, v.title, v.duration, v.views,
               o.id, o.username, o.full_name, o.avatar_url,
               w.watched_at
        FROM watch_history w
        JOIN videos v ON v.id = w.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE w.user_id = $1
        ORDER BY w.seq DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchEntry
	for rows.Next() {
		var entry models.WatchEntry
		if err := rows.Scan(&entry.Video.ID, &entry.Video.VideoURL, &entry.Video.ThumbnailURL,
			&entry.Video.Title, &entry.Video.Duration, &entry.Video.Views,
			&entry.Video.Owner.ID, &entry.Video.Owner.Username, &entry.Video.Owner.FullName,
			&entry.Video.Owner.AvatarURL, &entry.WatchedAt); err != nil {
			return nil, fmt.Errorf("scan watch entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return entries, nil
}

// LikedVideos returns the videos the user has liked, newest like
// first. Comment and tweet likes are excluded, and nothing of the
// underlying like record beyond the video and the liking user is
// exposed.
func (r *PostgresViewRepository) LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	ctx, span := logging.StartSpan(ctx, "views.liked_videos")
	defer span.End()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.video_url, v.thumbnail_url, v.title, v.duration, v.views,
               o.id, o.username, o.full_name, o.avatar_url,
               l.liked_by
        FROM likes l
        JOIN videos v ON v.id = l.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE l.liked_by = $1 AND l.video_id IS NOT NULL
        ORDER BY l.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	var liked []models.LikedVideo
	for rows.Next() {
		var item models.LikedVideo
		if err := rows.Scan(&item.Video.ID, &item.Video.VideoURL, &item.Video.ThumbnailURL,
			&item.Video.Title, &item.Video.Duration, &item.Video.Views,
			&item.Video.Owner.ID, &item.Video.Owner.Username, &item.Video.Owner.FullName,
			&item.Video.Owner.AvatarURL, &item.LikedBy); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		liked = append(liked, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}

	return liked, nil
}

// SearchVideos lists published videos whose title or description match
// the query (empty query matches everything), newest first.
func (r *PostgresViewRepository) SearchVideos(ctx context.Context, query string, limit, offset int) ([]models.VideoWithOwner, error) {
	ctx, span := logging.StartSpan(ctx, "views.search_videos")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.video_url, v.thumbnail_url, v.title, v.duration, v.views,
               o.id, o.username, o.full_name, o.avatar_url
        FROM videos v
        JOIN users o ON o.id = v.owner_id
        WHERE v.is_published
          AND ($1 = '' OR v.title ILIKE '%' || $1 || '%' OR v.description ILIKE '%' || $1 || '%')
        ORDER BY v.created_at DESC
        LIMIT $2 OFFSET $3
    `, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.VideoWithOwner
	for rows.Next() {
		var video models.VideoWithOwner
		if err := rows.Scan(&video.ID, &video.VideoURL, &video.ThumbnailURL, &video.Title,
			&video.Duration, &video.Views,
			&video.Owner.ID, &video.Owner.Username, &video.Owner.FullName, &video.Owner.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

var _ ViewRepository = (*PostgresViewRepository)(nil)
