package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// LikeRepository maintains per-(user, target) like records with toggle
// semantics: create if absent, remove if present.
type LikeRepository interface {
	Toggle(ctx context.Context, likedBy string, target models.LikeTarget, targetID string) (bool, models.Like, error)
}

// SubscriptionRepository maintains (subscriber, channel) records with
// the same toggle semantics.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
}
