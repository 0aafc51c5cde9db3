package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// ViewRepository composes derived, read-only views over the base
// collections. Every query projects an explicit allow-list of columns;
// password hashes and refresh tokens are never selected.
type ViewRepository interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchEntry, error)
	LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
	SearchVideos(ctx context.Context, query string, limit, offset int) ([]models.VideoWithOwner, error)
}
