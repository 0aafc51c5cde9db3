package models

import "time"

// User represents an account (and channel) on the VideoTube platform.
// Password and RefreshToken are storage-only fields and must never
// appear in composed views or API responses.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicProfile is the allow-listed projection of a user that may be
// inlined into composed views.
type PublicProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// Video is an uploaded video owned by a single user.
type Video struct {
	ID           string
	OwnerID      string
	VideoURL     string
	ThumbnailURL string
	Title        string
	Description  string
	Duration     float64
	Views        int64
	IsPublished  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tweet is a short text post owned by a single user.
type Tweet struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment is a text reply attached to a video.
type Comment struct {
	ID        string
	VideoID   string
	OwnerID   string
	Content   string
	CreatedAt time.Time
}

// LikeTarget enumerates the entity kinds a like may attach to.
type LikeTarget string

const (
	LikeTargetVideo   LikeTarget = "video"
	LikeTargetComment LikeTarget = "comment"
	LikeTargetTweet   LikeTarget = "tweet"
)

// Like is a junction record between a user and exactly one target.
// At most one record exists per (LikedBy, target) pair at any time.
type Like struct {
	ID        string
	LikedBy   string
	Target    LikeTarget
	TargetID  string
	CreatedAt time.Time
}

// Subscription records that a subscriber follows a channel.
type Subscription struct {
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ChannelProfile is the composed channel view: public user fields plus
// subscription aggregates relative to the requesting viewer.
type ChannelProfile struct {
	ID                        string `json:"id"`
	Username                  string `json:"username"`
	FullName                  string `json:"fullName"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// VideoWithOwner inlines the owner's public profile into a video, for
// the watch-history and liked-videos feeds.
type VideoWithOwner struct {
	ID           string        `json:"id"`
	VideoURL     string        `json:"videoFile"`
	ThumbnailURL string        `json:"thumbnail"`
	Title        string        `json:"title"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	Owner        PublicProfile `json:"owner"`
}

// WatchEntry is one resolved row of a user's watch history.
type WatchEntry struct {
	Video     VideoWithOwner `json:"video"`
	WatchedAt time.Time      `json:"watchedAt"`
}

// LikedVideo is one row of the liked-videos feed. Only the video and
// the liking user leak out of the underlying like record.
type LikedVideo struct {
	Video   VideoWithOwner `json:"video"`
	LikedBy string         `json:"likedBy"`
}
