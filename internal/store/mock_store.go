// ABOUTME: In-memory token Store for tests and the memory backend
// ABOUTME: Copies tokens on the way in and out so callers cannot alias stored state

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation.
type MockStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token

	// SaveErr, when set, is returned by SaveToken.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]*Token)}
}

// SaveToken stores a copy of token.
func (m *MockStore) SaveToken(_ context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *token
	m.tokens[token.Key] = &cp
	return nil
}

// GetToken returns a copy of the stored token.
func (m *MockStore) GetToken(_ context.Context, key string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// DeleteToken removes the token for key.
func (m *MockStore) DeleteToken(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// Len returns the number of stored tokens.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
