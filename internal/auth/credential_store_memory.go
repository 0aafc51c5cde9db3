package auth

import (
	"context"
	"sync"
)

// NewInMemoryCredentialStore returns a CredentialStore backed by an
// in-memory map, for tests and local development.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{tokens: make(map[string]string)}
}

// InMemoryCredentialStore implements CredentialStore without a database.
type InMemoryCredentialStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// SetRefreshToken overwrites the stored token for the user.
func (s *InMemoryCredentialStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	s.tokens[userID] = token
	s.mu.Unlock()
	return nil
}

// SwapRefreshToken replaces the stored token only when it matches previous.
func (s *InMemoryCredentialStore) SwapRefreshToken(_ context.Context, userID, previous, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tokens[userID]
	if !ok || current != previous {
		return ErrTokenSuperseded
	}
	s.tokens[userID] = next
	return nil
}

// ClearRefreshToken removes the stored token for the user.
func (s *InMemoryCredentialStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.tokens, userID)
	s.mu.Unlock()
	return nil
}

// Current reports the stored token for a user. Useful for tests.
func (s *InMemoryCredentialStore) Current(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userID]
	return token, ok
}
