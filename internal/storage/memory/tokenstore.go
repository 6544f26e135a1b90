// Package memory holds the in-process device token registry.
package memory

import (
	"sync"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// TokenStore is an insertion-ordered set of device tokens.
// It is safe for concurrent use and is never persisted.
type TokenStore struct {
	mu     sync.RWMutex
	index  map[string]struct{}
	tokens []string
}

// NewTokenStore returns an empty registry.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		index:  make(map[string]struct{}),
		tokens: make([]string, 0),
	}
}

// Register adds a token. Registering a known token is a no-op that still
// reports accepted=true.
func (s *TokenStore) Register(token string) (bool, error) {
	if token == "" {
		return false, dispatch.NewValidationError("token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[token]; exists {
		return true, nil
	}
	s.index[token] = struct{}{}
	s.tokens = append(s.tokens, token)
	return true, nil
}

// ListAll returns a copy of the tokens in registration order.
func (s *TokenStore) ListAll() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]string, len(s.tokens))
	copy(snapshot, s.tokens)
	return snapshot
}

// Len returns the number of distinct registered tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
