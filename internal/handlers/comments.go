package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/models"
)

// CommentHandler provides endpoints for video comments.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
}

type commentPayload struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func publicComment(comment models.Comment) commentPayload {
	return commentPayload{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		OwnerID:   comment.OwnerID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
}

type commentRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/comments/video/{videoId}.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	videoID := r.PathValue("videoId")
	if !isValidID(videoID) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "content is required")
		return
	}

	// Commenting on an unpublished or missing video is a not-found,
	// same as fetching it.
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}
	if !video.IsPublished && video.OwnerID != subject {
		respondJSON(ctx, w, http.StatusNotFound, nil, "video not found")
		return
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   subject,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, publicComment(comment), "comment added successfully")
}

// ListByVideo handles GET /api/v1/comments/video/{videoId}.
func (h CommentHandler) ListByVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if !isValidID(videoID) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}
	if !video.IsPublished && video.OwnerID != SubjectFromContext(ctx) {
		respondJSON(ctx, w, http.StatusNotFound, nil, "video not found")
		return
	}

	comments, err := h.Comments.ListByVideo(ctx, videoID)
	if err != nil {
		respondStorageError(ctx, w, err, "comments not found")
		return
	}

	payload := make([]commentPayload, 0, len(comments))
	for _, comment := range comments {
		payload = append(payload, publicComment(comment))
	}

	respondJSON(ctx, w, http.StatusOK, payload, "comments retrieved successfully")
}

// Delete handles DELETE /api/v1/comments/{id}. The comment's author
// and the video's owner may both delete it.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid comment id")
		return
	}

	comment, err := h.Comments.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "comment not found")
		return
	}

	if comment.OwnerID != subject {
		video, err := h.Videos.FindByID(ctx, comment.VideoID)
		if err != nil || video.OwnerID != subject {
			respondJSON(ctx, w, http.StatusForbidden, nil, "not allowed to delete this comment")
			return
		}
	}

	if err := h.Comments.Delete(ctx, id); err != nil {
		respondStorageError(ctx, w, err, "comment not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, nil, "comment deleted successfully")
}
