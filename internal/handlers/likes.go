package handlers

import (
	"net/http"
	"time"

	"github.com/videotube/backend/internal/models"
)

// LikeHandler toggles likes and serves the liked-videos feed.
type LikeHandler struct {
	Likes LikeStore
	Views ViewStore
}

type toggleResult struct {
	Liked     bool       `json:"liked"`
	LikeID    string     `json:"likeId,omitempty"`
	CreatedAt *time.Time `json:"likedAt,omitempty"`
}

// Toggle handles POST /api/v1/likes/toggle/{kind}/{id}. One call
// flips the like state for the caller on the named target; the
// response reports the state after the flip.
func (h LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	var target models.LikeTarget
	switch r.PathValue("kind") {
	case "video":
		target = models.LikeTargetVideo
	case "comment":
		target = models.LikeTargetComment
	case "tweet":
		target = models.LikeTargetTweet
	default:
		respondJSON(ctx, w, http.StatusBadRequest, nil, "unknown like target")
		return
	}

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid target id")
		return
	}

	liked, like, err := h.Likes.Toggle(ctx, subject, target, id)
	if err != nil {
		respondStorageError(ctx, w, err, "target not found")
		return
	}

	result := toggleResult{Liked: liked}
	if liked {
		result.LikeID = like.ID
		createdAt := like.CreatedAt
		result.CreatedAt = &createdAt
	}

	message := "like removed"
	if liked {
		message = "like added"
	}
	respondJSON(ctx, w, http.StatusOK, result, message)
}

// LikedVideos handles GET /api/v1/likes/videos: every video the
// caller currently likes, with the owner's public profile inlined.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	videos, err := h.Views.LikedVideos(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "liked videos not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, videos, "liked videos retrieved successfully")
}
