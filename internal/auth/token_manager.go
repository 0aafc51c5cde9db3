package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/videotube/backend/internal/models"
)

var (
	// ErrInvalidToken indicates a token that failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTokenSuperseded indicates a refresh token that is no longer the
	// currently stored value for its subject (rotated out or revoked).
	ErrTokenSuperseded = errors.New("refresh token superseded")
)

// CredentialStore persists the single active refresh token per user.
type CredentialStore interface {
	// SetRefreshToken unconditionally overwrites the stored refresh token.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces the stored token only if it currently
	// equals previous, returning ErrTokenSuperseded otherwise. Of two
	// concurrent swaps for the same user exactly one may succeed.
	SwapRefreshToken(ctx context.Context, userID, previous, next string) error
	// ClearRefreshToken removes the stored token, ending the session.
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Manager issues, verifies, and rotates access/refresh token pairs.
// Access tokens are stateless; refresh tokens are additionally pinned
// to the value stored against the user, so only the most recently
// issued refresh token is accepted.
type Manager struct {
	accessTTL     time.Duration
	refreshTTL    time.Duration
	accessSecret  []byte
	refreshSecret []byte

	store CredentialStore

	// NowFunc overrides the time source in tests.
	NowFunc func() time.Time
}

// NewManager constructs a Manager backed by the provided credential store.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, store CredentialStore) *Manager {
	if store == nil {
		panic("auth: credential store must not be nil")
	}
	if accessSecret == "" || refreshSecret == "" {
		panic("auth: token secrets must not be empty")
	}
	return &Manager{
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		store:         store,
	}
}

// Issue creates a fresh token pair for the user and stores the refresh
// token, invalidating any previously issued one.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	tokens, err := m.mint(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SetRefreshToken(ctx, userID, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Verify checks an access token and returns the subject user ID.
func (m *Manager) Verify(token string) (string, error) {
	return m.subject(token, m.accessSecret)
}

// Rotate exchanges a refresh token for a new token pair. The presented
// token must exactly equal the value currently stored for its subject;
// the swap is a single compare-and-set so a replayed or concurrently
// rotated token always fails.
func (m *Manager) Rotate(ctx context.Context, presented string) (models.SessionTokens, error) {
	userID, err := m.subject(presented, m.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens, err := m.mint(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SwapRefreshToken(ctx, userID, presented, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Revoke clears the stored refresh token for the user. Access tokens
// already issued stay valid until their own expiry; they are stateless
// and cannot be recalled early.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id must be provided")
	}
	return m.store.ClearRefreshToken(ctx, userID)
}

func (m *Manager) mint(userID string) (models.SessionTokens, error) {
	now := m.now()

	accessExpiry := now.Add(m.accessTTL)
	access, err := m.sign(userID, now, accessExpiry, m.accessSecret)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refreshExpiry := now.Add(m.refreshTTL)
	refresh, err := m.sign(userID, now, refreshExpiry, m.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (m *Manager) sign(userID string, issuedAt, expiresAt time.Time, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) subject(token string, secret []byte) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

func (m *Manager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc().UTC()
	}
	return time.Now().UTC()
}
