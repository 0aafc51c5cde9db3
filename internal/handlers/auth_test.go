package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	watches []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) UpdateDetails(_ context.Context, id, fullName, email string) error {
	return s.mutate(id, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(u *models.User) { u.Password = passwordHash })
}

func (s *fakeUserStore) UpdateAvatar(_ context.Context, id, avatarURL string) error {
	return s.mutate(id, func(u *models.User) { u.AvatarURL = avatarURL })
}

func (s *fakeUserStore) UpdateCoverImage(_ context.Context, id, coverImageURL string) error {
	return s.mutate(id, func(u *models.User) { u.CoverImageURL = coverImageURL })
}

func (s *fakeUserStore) RecordWatch(_ context.Context, userID, videoID string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return repositories.ErrNotFound
	}
	s.watches = append(s.watches, fmt.Sprintf("%s:%s", userID, videoID))
	return nil
}

func (s *fakeUserStore) mutate(id string, apply func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	apply(&user)
	s.users[id] = user
	return nil
}

type fakeBlobStore struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	failAll bool
}

func (b *fakeBlobStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if b.failAll {
		return "", fmt.Errorf("blob store unavailable")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	location := "https://cdn.test/" + name
	b.saved = append(b.saved, location)
	return location, nil
}

func (b *fakeBlobStore) Delete(_ context.Context, location string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, location)
	return nil
}

func newTestManager(store auth.CredentialStore) *auth.Manager {
	return auth.NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)
}

// envelope mirrors the wire response with the data left raw.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

// assertNoCredentialLeak fails when a marshaled payload carries any
// storage-only credential field.
func assertNoCredentialLeak(t *testing.T, data json.RawMessage) {
	t.Helper()
	body := strings.ToLower(string(data))
	for _, field := range []string{"password", "refreshtoken", "refresh_token"} {
		if strings.Contains(body, field) {
			t.Fatalf("response leaks %q: %s", field, data)
		}
	}
}

func registerForm(t *testing.T, fields map[string]string, withAvatar bool) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if withAvatar {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatalf("create avatar part: %v", err)
		}
		if _, err := fw.Write([]byte("png-bytes")); err != nil {
			t.Fatalf("write avatar part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func TestRegisterCreatesUserWithoutIssuingTokens(t *testing.T) {
	store := newFakeUserStore()
	blobs := &fakeBlobStore{}
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore()), Blobs: blobs}

	body, contentType := registerForm(t, map[string]string{
		"fullName": "Test User",
		"email":    "test@example.com",
		"username": "testuser",
		"password": "supersafe123",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if strings.Contains(string(env.Data), "accessToken") {
		t.Fatalf("registration must not issue tokens, got %s", env.Data)
	}
	assertNoCredentialLeak(t, env.Data)

	stored, err := store.FindByUsernameOrEmail(context.Background(), "testuser", "")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe123")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if len(blobs.saved) != 1 || !strings.Contains(blobs.saved[0], "avatars/") {
		t.Fatalf("expected one avatar upload, got %v", blobs.saved)
	}
}

func TestRegisterRequiresAvatar(t *testing.T) {
	handler := AuthHandler{Users: newFakeUserStore(), Sessions: newTestManager(auth.NewInMemoryCredentialStore()), Blobs: &fakeBlobStore{}}

	body, contentType := registerForm(t, map[string]string{
		"fullName": "Test User",
		"email":    "test@example.com",
		"username": "testuser",
		"password": "supersafe123",
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	store := newFakeUserStore()
	store.users["existing"] = models.User{ID: "existing", Username: "testuser", Email: "other@example.com"}
	blobs := &fakeBlobStore{}
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore()), Blobs: blobs}

	body, contentType := registerForm(t, map[string]string{
		"fullName": "Test User",
		"email":    "test@example.com",
		"username": "testuser",
		"password": "supersafe123",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
	if len(blobs.saved) != 0 {
		t.Fatalf("conflicting registration must not upload media, got %v", blobs.saved)
	}
}

// conflictOnCreateStore looks vacant on lookup but conflicts on insert,
// the shape of two registrations racing for the same username.
type conflictOnCreateStore struct {
	*fakeUserStore
}

func (s conflictOnCreateStore) FindByUsernameOrEmail(context.Context, string, string) (models.User, error) {
	return models.User{}, repositories.ErrNotFound
}

func TestRegisterLostInsertRaceDiscardsUploads(t *testing.T) {
	store := newFakeUserStore()
	store.users["existing"] = models.User{ID: "existing", Username: "testuser", Email: "other@example.com"}
	blobs := &fakeBlobStore{}
	handler := AuthHandler{Users: conflictOnCreateStore{store}, Sessions: newTestManager(auth.NewInMemoryCredentialStore()), Blobs: blobs}

	body, contentType := registerForm(t, map[string]string{
		"fullName": "Test User",
		"email":    "test@example.com",
		"username": "testuser",
		"password": "supersafe123",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
	if len(blobs.saved) != 1 {
		t.Fatalf("expected the avatar upload to have happened, got %v", blobs.saved)
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != blobs.saved[0] {
		t.Fatalf("expected the orphaned avatar blob to be deleted, saved %v deleted %v", blobs.saved, blobs.deleted)
	}
}

func seedUser(t *testing.T, store *fakeUserStore, id, username, email, password string) models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{ID: id, Username: username, Email: email, FullName: "Seeded User", Password: string(hashed)}
	store.users[id] = user
	return user
}

func TestLoginByUsernameSetsSessionCookies(t *testing.T) {
	store := newFakeUserStore()
	seedUser(t, store, "user-1", "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore())}

	body, err := json.Marshal(loginRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Data loginResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Tokens.AccessToken == "" || resp.Data.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Data.Tokens)
	}

	cookies := rec.Result().Cookies()
	byName := make(map[string]*http.Cookie)
	for _, c := range cookies {
		byName[c.Name] = c
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie, ok := byName[name]
		if !ok {
			t.Fatalf("expected %s cookie to be set", name)
		}
		if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s missing hardening attributes: %+v", name, cookie)
		}
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	store := newFakeUserStore()
	seedUser(t, store, "user-1", "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore())}

	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "wrong-password"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestLoginUnknownUserMatchesWrongPasswordResponse(t *testing.T) {
	store := newFakeUserStore()
	seedUser(t, store, "user-1", "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore())}

	responses := make([]envelope, 0, 2)
	for _, payload := range []loginRequest{
		{Username: "nobody", Password: "password123"},
		{Username: "alice", Password: "wrong-password"},
	} {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
		}
		responses = append(responses, decodeEnvelope(t, rec))
	}

	if responses[0].Message != responses[1].Message {
		t.Fatalf("unknown-user and wrong-password responses differ: %q vs %q", responses[0].Message, responses[1].Message)
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	manager := newTestManager(auth.NewInMemoryCredentialStore())
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.SessionTokens `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.RefreshToken == "" || resp.Data.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	// Replaying the superseded token must fail.
	body, _ = json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(body))
	rec = httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected with %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRefreshAcceptsCookieToken(t *testing.T) {
	manager := newTestManager(auth.NewInMemoryCredentialStore())
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestLogoutClearsStoredRefreshToken(t *testing.T) {
	credentials := auth.NewInMemoryCredentialStore()
	manager := newTestManager(credentials)
	if _, err := manager.Issue(context.Background(), "user-123"); err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req = req.WithContext(withSubject(req.Context(), "user-123"))
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if _, ok := credentials.Current("user-123"); ok {
		t.Fatal("expected stored refresh token to be cleared")
	}
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	store := newFakeUserStore()
	seedUser(t, store, "user-1", "alice", "alice@example.com", "password123")
	handler := AuthHandler{Users: store, Sessions: newTestManager(auth.NewInMemoryCredentialStore())}

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body))
	req = req.WithContext(withSubject(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}
