package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"

	maxUploadBytes = 256 << 20
	minPasswordLen = 8
)

// AuthHandler implements registration, login, and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Blobs    BlobStore
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Register handles POST /api/v1/users/register requests. The avatar
// upload is mandatory; the cover image is optional.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondJSON(ctx, w, http.StatusTooManyRequests, nil, "too many requests")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid multipart form")
		return
	}

	fullName := strings.TrimSpace(r.FormValue("fullName"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	password := r.FormValue("password")

	if fullName == "" || email == "" || username == "" || password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "fullName, email, username and password are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid email address")
		return
	}
	if len(password) < minPasswordLen {
		respondJSON(ctx, w, http.StatusBadRequest, nil, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	// Reject taken identities before touching the blob store so a
	// conflicting registration uploads nothing.
	if _, err := h.Users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		respondJSON(ctx, w, http.StatusConflict, nil, "username or email already exists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("failed to look up existing user", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to create account")
		return
	}

	avatarFile, avatarHeader, err := r.FormFile("avatar")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "avatar is required")
		return
	}
	defer avatarFile.Close()

	avatarURL, err := saveUpload(r, h.Blobs, "avatars", avatarFile, avatarHeader)
	if err != nil {
		logger.Warn("avatar upload failed", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, nil, "avatar upload failed")
		return
	}

	coverImageURL := ""
	if coverFile, coverHeader, err := r.FormFile("coverImage"); err == nil {
		defer coverFile.Close()
		coverImageURL, err = saveUpload(r, h.Blobs, "covers", coverFile, coverHeader)
		if err != nil {
			logger.Warn("cover image upload failed", "error", err)
			discardUploads(ctx, h.Blobs, avatarURL)
			respondJSON(ctx, w, http.StatusBadRequest, nil, "cover image upload failed")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		discardUploads(ctx, h.Blobs, avatarURL, coverImageURL)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		discardUploads(ctx, h.Blobs, avatarURL, coverImageURL)
		if errors.Is(err, repositories.ErrConflict) {
			// Raced by a concurrent registration that won the insert.
			respondJSON(ctx, w, http.StatusConflict, nil, "username or email already exists")
			return
		}
		logger.Error("failed to create user", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to create account")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, publicUser(user), "user registered successfully")
}

// Login handles POST /api/v1/users/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, nil, "too many requests")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "username or email, and password are required")
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, nil, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, nil, "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to create session")
		return
	}

	setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, loginResponse{User: publicUser(user), Tokens: tokens}, "user logged in successfully")
}

// Logout handles POST /api/v1/users/logout requests. The stored
// refresh token is cleared; outstanding access tokens expire on their own.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	if err := h.Sessions.Revoke(ctx, subject); err != nil {
		logging.FromContext(ctx).Error("failed to revoke session", "error", err, "userId", subject)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to log out")
		return
	}

	clearSessionCookies(w)
	respondJSON(ctx, w, http.StatusOK, nil, "user logged out successfully")
}

// Refresh handles POST /api/v1/users/refresh-token requests. The
// refresh token may arrive as a cookie or in the request body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "refresh") {
		respondJSON(ctx, w, http.StatusTooManyRequests, nil, "too many requests")
		return
	}

	presented := ""
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}
	if presented == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Rotate(ctx, presented)
	if err != nil {
		// Uniform response: a forged, expired, replayed, or unknown
		// token all look the same to the caller.
		logger.Warn("refresh rejected", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, nil, "invalid refresh token")
		return
	}

	setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, tokens, "access token refreshed successfully")
}

// ChangePassword handles POST /api/v1/users/change-password requests.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	subject := SubjectFromContext(ctx)

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "old and new passwords are required")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		respondJSON(ctx, w, http.StatusBadRequest, nil, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	user, err := h.Users.FindByID(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, nil, "invalid old password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, nil, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, subject, string(hashed)); err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, nil, "password changed successfully")
}

// Me handles GET /api/v1/users/me requests.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, SubjectFromContext(ctx))
	if err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, publicUser(user), "user retrieved successfully")
}

// UpdateAccount handles PATCH /api/v1/users/me requests.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := SubjectFromContext(ctx)

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "fullName and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid email address")
		return
	}

	if err := h.Users.UpdateDetails(ctx, subject, req.FullName, req.Email); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, nil, "email already in use")
			return
		}
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	user, err := h.Users.FindByID(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, publicUser(user), "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar requests.
func (h AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "avatar", "avatars", "avatar updated successfully",
		func(u models.User) string { return u.AvatarURL },
		h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image requests.
func (h AuthHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "coverImage", "covers", "cover image updated successfully",
		func(u models.User) string { return u.CoverImageURL },
		h.Users.UpdateCoverImage)
}

// updateMedia replaces one of the user's profile media assets. The
// superseded blob is deleted best-effort: a failed delete logs and the
// request still succeeds.
func (h AuthHandler) updateMedia(w http.ResponseWriter, r *http.Request, field, prefix, message string,
	current func(models.User) string, persist func(ctx context.Context, id, url string) error) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	subject := SubjectFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, nil, fmt.Sprintf("%s file is required", field))
		return
	}
	defer file.Close()

	user, err := h.Users.FindByID(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	location, err := saveUpload(r, h.Blobs, prefix, file, header)
	if err != nil {
		logger.Warn("media upload failed", "field", field, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, nil, fmt.Sprintf("%s upload failed", field))
		return
	}

	if err := persist(ctx, subject, location); err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	if old := current(user); old != "" {
		if err := h.Blobs.Delete(ctx, old); err != nil {
			logger.Warn("failed to delete superseded media", "location", old, "error", err)
		}
	}

	updated, err := h.Users.FindByID(ctx, subject)
	if err != nil {
		respondStorageError(ctx, w, err, "user not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, publicUser(updated), message)
}

// saveUpload streams one multipart file into the blob store under a
// generated key that keeps the original extension.
func saveUpload(r *http.Request, blobs BlobStore, prefix string, file multipart.File, header *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(header.Filename))
	return blobs.Save(r.Context(), name, file)
}

// discardUploads deletes blobs stored for a request that later failed.
// Deletion is best-effort: a failure logs and the response proceeds.
func discardUploads(ctx context.Context, blobs BlobStore, locations ...string) {
	logger := logging.FromContext(ctx)
	for _, location := range locations {
		if location == "" {
			continue
		}
		if err := blobs.Delete(ctx, location); err != nil {
			logger.Warn("failed to delete orphaned upload", "location", location, "error", err)
		}
	}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, "", time.Unix(0, 0)))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, "", time.Unix(0, 0)))
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// userPayload is the allow-listed projection of a user returned by the
// API. The credential hash and refresh token never leave storage.
type userPayload struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
}

func publicUser(user models.User) userPayload {
	return userPayload{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User   userPayload          `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}
