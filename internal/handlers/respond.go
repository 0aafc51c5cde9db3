package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/repositories"
)

// apiResponse is the uniform envelope returned by every endpoint.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}

	logger := logging.FromContext(ctx)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response body", "status", status, "error", err)
		return
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", message)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "message", message)
	}
}

// respondStorageError maps repository and auth sentinels onto the HTTP
// taxonomy, defaulting to a dependency failure.
func respondStorageError(ctx context.Context, w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, nil, notFoundMessage)
	case errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, nil, "record already exists")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenSuperseded):
		respondJSON(ctx, w, http.StatusUnauthorized, nil, "unauthorized")
	default:
		logging.FromContext(ctx).Error("storage operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "internal error")
	}
}

// isValidID reports whether a request-supplied identifier is
// well-formed. Malformed IDs fail fast before any storage lookup.
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
