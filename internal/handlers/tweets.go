package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/models"
)

const maxTweetLen = 500

// TweetHandler provides endpoints for short text posts.
type TweetHandler struct {
	Tweets TweetStore
}

type tweetPayload struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func publicTweet(tweet models.Tweet) tweetPayload {
	return tweetPayload{
		ID:        tweet.ID,
		OwnerID:   tweet.OwnerID,
		Content:   tweet.Content,
		CreatedAt: tweet.CreatedAt,
		UpdatedAt: tweet.UpdatedAt,
	}
}

type tweetRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxTweetLen {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "content must be between 1 and 500 characters")
		return
	}

	now := time.Now().UTC()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   subject,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondStorageError(ctx, w, err, "owner not found")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, publicTweet(tweet), "tweet created successfully")
}

// ListByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.PathValue("userId")
	if !isValidID(userID) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid user id")
		return
	}

	tweets, err := h.Tweets.ListByOwner(ctx, userID)
	if err != nil {
		respondStorageError(ctx, w, err, "tweets not found")
		return
	}

	payload := make([]tweetPayload, 0, len(tweets))
	for _, tweet := range tweets {
		payload = append(payload, publicTweet(tweet))
	}

	respondJSON(ctx, w, http.StatusOK, payload, "tweets retrieved successfully")
}

// Update handles PATCH /api/v1/tweets/{id}. Owner-gated.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid tweet id")
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxTweetLen {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "content must be between 1 and 500 characters")
		return
	}

	tweet, err := h.Tweets.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "tweet not found")
		return
	}
	if tweet.OwnerID != subject {
		respondJSON(ctx, w, http.StatusForbidden, nil, "not the owner of this tweet")
		return
	}

	if err := h.Tweets.UpdateContent(ctx, id, content); err != nil {
		respondStorageError(ctx, w, err, "tweet not found")
		return
	}

	tweet.Content = content
	respondJSON(ctx, w, http.StatusOK, publicTweet(tweet), "tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{id}. Owner-gated.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	id := r.PathValue("id")
	if !isValidID(id) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid tweet id")
		return
	}

	tweet, err := h.Tweets.FindByID(ctx, id)
	if err != nil {
		respondStorageError(ctx, w, err, "tweet not found")
		return
	}
	if tweet.OwnerID != subject {
		respondJSON(ctx, w, http.StatusForbidden, nil, "not the owner of this tweet")
		return
	}

	if err := h.Tweets.Delete(ctx, id); err != nil {
		respondStorageError(ctx, w, err, "tweet not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, nil, "tweet deleted successfully")
}
