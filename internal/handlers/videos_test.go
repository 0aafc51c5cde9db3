package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type fakeVideoStore struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]models.Video)}
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) Update(_ context.Context, id, title, description, thumbnailURL string) error {
	return s.mutate(id, func(v *models.Video) {
		v.Title = title
		v.Description = description
		v.ThumbnailURL = thumbnailURL
	})
}

func (s *fakeVideoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s *fakeVideoStore) SetPublished(_ context.Context, id string, published bool) error {
	return s.mutate(id, func(v *models.Video) { v.IsPublished = published })
}

func (s *fakeVideoStore) IncrementViews(_ context.Context, id string) error {
	return s.mutate(id, func(v *models.Video) { v.Views++ })
}

func (s *fakeVideoStore) mutate(id string, apply func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	apply(&video)
	s.videos[id] = video
	return nil
}

func seedVideo(store *fakeVideoStore, ownerID string, published bool) models.Video {
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		VideoURL:     "https://cdn.test/videos/clip.mp4",
		ThumbnailURL: "https://cdn.test/thumbnails/clip.png",
		Title:        "Clip",
		Description:  "A clip.",
		IsPublished:  published,
		CreatedAt:    time.Now().UTC(),
	}
	store.videos[video.ID] = video
	return video
}

func getVideoRequest(id, subject string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/videos/%s", id), nil)
	req.SetPathValue("id", id)
	if subject != "" {
		req = req.WithContext(withSubject(req.Context(), subject))
	}
	return req
}

func TestGetVideoHidesUnpublishedFromStrangers(t *testing.T) {
	videos := newFakeVideoStore()
	users := newFakeUserStore()
	video := seedVideo(videos, "owner-1", false)
	handler := VideoHandler{Videos: videos, Users: users}

	rec := httptest.NewRecorder()
	handler.Get(rec, getVideoRequest(video.ID, "stranger-1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger: expected status %d got %d", http.StatusNotFound, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Get(rec, getVideoRequest(video.ID, "owner-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner: expected status %d got %d", http.StatusOK, rec.Code)
	}
}

func TestGetVideoRecordsWatchForAuthenticatedViewer(t *testing.T) {
	videos := newFakeVideoStore()
	users := newFakeUserStore()
	users.users["viewer-1"] = models.User{ID: "viewer-1", Username: "viewer"}
	video := seedVideo(videos, "owner-1", true)
	handler := VideoHandler{Videos: videos, Users: users}

	rec := httptest.NewRecorder()
	handler.Get(rec, getVideoRequest(video.ID, "viewer-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if got := videos.videos[video.ID].Views; got != 1 {
		t.Fatalf("expected 1 view, got %d", got)
	}
	want := fmt.Sprintf("viewer-1:%s", video.ID)
	if len(users.watches) != 1 || users.watches[0] != want {
		t.Fatalf("expected watch %q recorded, got %v", want, users.watches)
	}
}

func TestGetVideoAnonymousViewLeavesNoTrace(t *testing.T) {
	videos := newFakeVideoStore()
	users := newFakeUserStore()
	video := seedVideo(videos, "owner-1", true)
	handler := VideoHandler{Videos: videos, Users: users}

	rec := httptest.NewRecorder()
	handler.Get(rec, getVideoRequest(video.ID, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if got := videos.videos[video.ID].Views; got != 0 {
		t.Fatalf("expected views to stay at 0, got %d", got)
	}
	if len(users.watches) != 0 {
		t.Fatalf("expected no watch records, got %v", users.watches)
	}
}

func TestGetVideoRejectsMalformedID(t *testing.T) {
	handler := VideoHandler{Videos: newFakeVideoStore(), Users: newFakeUserStore()}

	rec := httptest.NewRecorder()
	handler.Get(rec, getVideoRequest("not-a-uuid", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestTogglePublishIsOwnerGated(t *testing.T) {
	videos := newFakeVideoStore()
	video := seedVideo(videos, "owner-1", true)
	handler := VideoHandler{Videos: videos}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/videos/%s/toggle-publish", video.ID), nil)
	req.SetPathValue("id", video.ID)
	req = req.WithContext(withSubject(req.Context(), "stranger-1"))
	rec := httptest.NewRecorder()

	handler.TogglePublish(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
	if !videos.videos[video.ID].IsPublished {
		t.Fatal("publish state must not change for a non-owner")
	}
}

func TestDeleteVideoRemovesBlobs(t *testing.T) {
	videos := newFakeVideoStore()
	blobs := &fakeBlobStore{}
	video := seedVideo(videos, "owner-1", true)
	handler := VideoHandler{Videos: videos, Blobs: blobs}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/videos/%s", video.ID), nil)
	req.SetPathValue("id", video.ID)
	req = req.WithContext(withSubject(req.Context(), "owner-1"))
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if _, ok := videos.videos[video.ID]; ok {
		t.Fatal("expected video record to be deleted")
	}
	if len(blobs.deleted) != 2 {
		t.Fatalf("expected both media blobs deleted, got %v", blobs.deleted)
	}
}
