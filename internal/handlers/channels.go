package handlers

import (
	"net/http"
	"strings"
)

// ChannelHandler serves composed channel views, watch history, and
// subscription toggles.
type ChannelHandler struct {
	Views         ViewStore
	Subscriptions SubscriptionStore
}

// Profile handles GET /api/v1/channels/{username}. The subscription
// aggregates are computed relative to the requesting viewer; anonymous
// viewers always see isSubscribed=false.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.TrimSpace(strings.ToLower(r.PathValue("username")))
	if username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "username is required")
		return
	}

	profile, err := h.Views.ChannelProfile(ctx, username, SubjectFromContext(ctx))
	if err != nil {
		respondStorageError(ctx, w, err, "channel not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile, "channel profile retrieved successfully")
}

// WatchHistory handles GET /api/v1/users/history: the caller's watch
// history, most recent first, owner profiles inlined.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	history, err := h.Views.WatchHistory(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "watch history not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, history, "watch history retrieved successfully")
}

type subscriptionToggleResult struct {
	Subscribed bool `json:"subscribed"`
}

// ToggleSubscription handles POST /api/v1/subscriptions/toggle/{channelId}.
// Subscribing to yourself is rejected before touching storage.
func (h ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	channelID := r.PathValue("channelId")
	if !isValidID(channelID) {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid channel id")
		return
	}
	if channelID == subject {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "cannot subscribe to your own channel")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, subject, channelID)
	if err != nil {
		respondStorageError(ctx, w, err, "channel not found")
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}
	respondJSON(ctx, w, http.StatusOK, subscriptionToggleResult{Subscribed: subscribed}, message)
}
