package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// VideoHandler provides endpoints for publishing and managing videos.
type VideoHandler struct {
	Videos VideoStore
	Users  UserStore
	Views  ViewStore
	Blobs  BlobStore

	// HistoryDedupe selects whether a re-watch moves the video to the
	// head of the viewer's history instead of appending a duplicate.
	HistoryDedupe bool
}

// videoPayload is the allow-listed projection of a video.
type videoPayload struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner"`
	VideoURL     string    `json:"videoFile"`
	ThumbnailURL string    `json:"thumbnail"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
}

func publicVideo(video models.Video) videoPayload {
	return videoPayload{
		ID:           video.ID,
		OwnerID:      video.OwnerID,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		Title:        video.Title,
		Description:  video.Description,
		Duration:     video.Duration,
		Views:        video.Views,
		IsPublished:  video.IsPublished,
		CreatedAt:    video.CreatedAt,
	}
}

// Publish handles POST /api/v1/videos. Both the video file and the
// thumbnail must upload successfully before the record is created.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	subject := SubjectFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "title and description are required")
		return
	}

	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)
	if duration < 0 {
		duration = 0
	}

	videoFile, videoHeader, err := r.FormFile("videoFile")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "video file is required")
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "thumbnail is required")
		return
	}
	defer thumbFile.Close()

	videoURL, err := saveUpload(r, h.Blobs, "videos", videoFile, videoHeader)
	if err != nil {
		logger.Warn("video upload failed", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, nil, "video upload failed")
		return
	}

	thumbnailURL, err := saveUpload(r, h.Blobs, "thumbnails", thumbFile, thumbHeader)
	if err != nil {
		logger.Warn("thumbnail upload failed", "error", err)
		discardUploads(ctx, h.Blobs, videoURL)
		respondJSON(ctx, w, http.StatusBadRequest, nil, "thumbnail upload failed")
		return
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      subject,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		Title:        title,
		Description:  description,
		Duration:     duration,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("failed to create video", "error", err)
		discardUploads(ctx, h.Blobs, videoURL, thumbnailURL)
		respondStorageError(ctx, w, err, "owner not found")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, publicVideo(video), "video published successfully")
}

// Get handles GET /api/v1/videos/{id}. Fetching a published video as
// an authenticated viewer counts as a watch: the view counter is
// bumped and the video is appended to the viewer's history. Both are
// best-effort relative to serving the video itself.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	viewer := SubjectFromContext(ctx)

	// An unpublished video is visible to its owner only; everyone else
	// cannot learn that it exists.
	if !video.IsPublished && video.OwnerID != viewer {
		respondJSON(ctx, w, http.StatusNotFound, nil, "video not found")
		return
	}

	if viewer != "" && viewer != video.OwnerID {
		if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
			logger.Warn("failed to increment views", "videoId", video.ID, "error", err)
		} else {
			video.Views++
		}
		if err := h.Users.RecordWatch(ctx, viewer, video.ID, h.HistoryDedupe); err != nil {
			logger.Warn("failed to record watch", "videoId", video.ID, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, publicVideo(video), "video retrieved successfully")
}

// Update handles PATCH /api/v1/videos/{id}. Owner-gated; the
// thumbnail may optionally be replaced in the same request.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}
	if video.OwnerID != subject {
		respondJSON(ctx, w, http.StatusForbidden, nil, "not the owner of this video")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "title and description are required")
		return
	}

	thumbnailURL := video.ThumbnailURL
	if thumbFile, thumbHeader, err := r.FormFile("thumbnail"); err == nil {
		defer thumbFile.Close()

		thumbnailURL, err = saveUpload(r, h.Blobs, "thumbnails", thumbFile, thumbHeader)
		if err != nil {
			logger.Warn("thumbnail upload failed", "error", err)
			respondJSON(ctx, w, http.StatusBadRequest, nil, "thumbnail upload failed")
			return
		}
	}

	if err := h.Videos.Update(ctx, id, title, description, thumbnailURL); err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	if thumbnailURL != video.ThumbnailURL && video.ThumbnailURL != "" {
		if err := h.Blobs.Delete(ctx, video.ThumbnailURL); err != nil {
			logger.Warn("failed to delete superseded thumbnail", "location", video.ThumbnailURL, "error", err)
		}
	}

	updated, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, publicVideo(updated), "video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{id}. Owner-gated. Blob
// removal is best-effort once the record is gone.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}
	if video.OwnerID != subject {
		respondJSON(ctx, w, http.StatusForbidden, nil, "not the owner of this video")
		return
	}

	if err := h.Videos.Delete(ctx, id); err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	for _, location := range []string{video.VideoURL, video.ThumbnailURL} {
		if location == "" {
			continue
		}
		if err := h.Blobs.Delete(ctx, location); err != nil {
			logger.Warn("failed to delete video blob", "location", location, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, nil, "video deleted successfully")
}

// TogglePublish handles POST /api/v1/videos/{id}/toggle-publish. Owner-gated.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}
	if video.OwnerID != subject {
		respondJSON(ctx, w, http.StatusForbidden, nil, "not the owner of this video")
		return
	}

	if err := h.Videos.SetPublished(ctx, id, !video.IsPublished); err != nil {
		respondStorageError(ctx, w, err, "video not found")
		return
	}

	video.IsPublished = !video.IsPublished
	respondJSON(ctx, w, http.StatusOK, publicVideo(video), "video publish status updated")
}

// List handles GET /api/v1/videos. Published videos only, optionally
// filtered by a title/description query, paginated.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if limit <= 0 {
		limit = 10
	}
	if page < 1 {
		page = 1
	}

	videos, err := h.Views.SearchVideos(ctx, query, limit, (page-1)*limit)
	if err != nil {
		respondStorageError(ctx, w, err, "videos not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, videos, "videos retrieved successfully")
}
