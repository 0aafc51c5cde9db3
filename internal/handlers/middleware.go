package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/logging"
)

type subjectKey struct{}

// SubjectFromContext returns the authenticated user ID attached by
// RequireAuth or OptionalAuth, or "" for anonymous requests.
func SubjectFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(subjectKey{}).(string); ok {
		return id
	}
	return ""
}

func withSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// TokenVerifier resolves an access token to a subject identity.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// accessTokenFromRequest looks for the access token in the cookie set
// at login, falling back to a bearer Authorization header.
func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth rejects requests that do not carry a valid access token
// and attaches the resolved subject to the request context. Token
// failures are uniformly unauthorized; they never reveal whether an
// account exists.
func RequireAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := accessTokenFromRequest(r)
		if token == "" {
			respondJSON(ctx, w, http.StatusUnauthorized, nil, "authentication required")
			return
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			logging.FromContext(ctx).Warn("access token rejected", "error", err)
			respondJSON(ctx, w, http.StatusUnauthorized, nil, "invalid or expired token")
			return
		}

		next(w, r.WithContext(withSubject(ctx, subject)))
	}
}

// OptionalAuth attaches a subject when a valid access token is present
// but lets anonymous requests through.
func OptionalAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := accessTokenFromRequest(r); token != "" {
			if subject, err := verifier.Verify(token); err == nil {
				r = r.WithContext(withSubject(r.Context(), subject))
			}
		}
		next(w, r)
	}
}
