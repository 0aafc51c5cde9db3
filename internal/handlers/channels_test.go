package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type fakeViewStore struct {
	profiles map[string]models.ChannelProfile
	history  map[string][]models.WatchEntry
	liked    map[string][]models.LikedVideo
	results  []models.VideoWithOwner
}

func newFakeViewStore() *fakeViewStore {
	return &fakeViewStore{
		profiles: make(map[string]models.ChannelProfile),
		history:  make(map[string][]models.WatchEntry),
		liked:    make(map[string][]models.LikedVideo),
	}
}

func (s *fakeViewStore) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	profile, ok := s.profiles[username]
	if !ok {
		return models.ChannelProfile{}, repositories.ErrNotFound
	}
	profile.IsSubscribed = viewerID != "" && viewerID == "subscribed-viewer"
	return profile, nil
}

func (s *fakeViewStore) WatchHistory(_ context.Context, userID string) ([]models.WatchEntry, error) {
	return s.history[userID], nil
}

func (s *fakeViewStore) LikedVideos(_ context.Context, userID string) ([]models.LikedVideo, error) {
	return s.liked[userID], nil
}

func (s *fakeViewStore) SearchVideos(_ context.Context, _ string, _, _ int) ([]models.VideoWithOwner, error) {
	return s.results, nil
}

type fakeSubscriptionStore struct {
	mu            sync.Mutex
	subscriptions map[string]bool
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subscriptions: make(map[string]bool)}
}

func (s *fakeSubscriptionStore) Toggle(_ context.Context, subscriberID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subscriberID + "|" + channelID
	if s.subscriptions[key] {
		delete(s.subscriptions, key)
		return false, nil
	}
	s.subscriptions[key] = true
	return true, nil
}

func profileRequest(username, subject string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/channels/%s", username), nil)
	req.SetPathValue("username", username)
	if subject != "" {
		req = req.WithContext(withSubject(req.Context(), subject))
	}
	return req
}

func TestChannelProfileReflectsViewer(t *testing.T) {
	views := newFakeViewStore()
	views.profiles["alice"] = models.ChannelProfile{ID: "user-1", Username: "alice", SubscribersCount: 2}
	handler := ChannelHandler{Views: views}

	rec := httptest.NewRecorder()
	handler.Profile(rec, profileRequest("alice", "subscribed-viewer"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(string(env.Data), `"isSubscribed":true`) {
		t.Fatalf("expected subscribed viewer flag, got %s", env.Data)
	}
	assertNoCredentialLeak(t, env.Data)

	rec = httptest.NewRecorder()
	handler.Profile(rec, profileRequest("alice", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	env = decodeEnvelope(t, rec)
	if !strings.Contains(string(env.Data), `"isSubscribed":false`) {
		t.Fatalf("anonymous viewer must never appear subscribed, got %s", env.Data)
	}
}

func TestChannelProfileUnknownUsernameIsNotFound(t *testing.T) {
	handler := ChannelHandler{Views: newFakeViewStore()}

	rec := httptest.NewRecorder()
	handler.Profile(rec, profileRequest("ghost", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func subscriptionToggleRequest(channelID, subject string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/subscriptions/toggle/%s", channelID), nil)
	req.SetPathValue("channelId", channelID)
	return req.WithContext(withSubject(req.Context(), subject))
}

func TestToggleSubscriptionFlipsState(t *testing.T) {
	store := newFakeSubscriptionStore()
	handler := ChannelHandler{Subscriptions: store}
	channelID := uuid.NewString()

	for i, want := range []bool{true, false} {
		rec := httptest.NewRecorder()
		handler.ToggleSubscription(rec, subscriptionToggleRequest(channelID, "user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle %d: expected status %d got %d", i, http.StatusOK, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		wantFragment := fmt.Sprintf(`"subscribed":%t`, want)
		if !strings.Contains(string(env.Data), wantFragment) {
			t.Fatalf("toggle %d: expected %s in %s", i, wantFragment, env.Data)
		}
	}
}

func TestToggleSubscriptionRejectsSelf(t *testing.T) {
	handler := ChannelHandler{Subscriptions: newFakeSubscriptionStore()}
	channelID := uuid.NewString()

	rec := httptest.NewRecorder()
	handler.ToggleSubscription(rec, subscriptionToggleRequest(channelID, channelID))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestWatchHistoryReturnsViewerEntries(t *testing.T) {
	views := newFakeViewStore()
	views.history["user-1"] = []models.WatchEntry{
		{Video: models.VideoWithOwner{ID: uuid.NewString(), Title: "Latest"}},
		{Video: models.VideoWithOwner{ID: uuid.NewString(), Title: "Earlier"}},
	}
	handler := ChannelHandler{Views: views}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	req = req.WithContext(withSubject(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.WatchHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(string(env.Data), "Latest") || !strings.Contains(string(env.Data), "Earlier") {
		t.Fatalf("expected both history entries, got %s", env.Data)
	}
	assertNoCredentialLeak(t, env.Data)
}
