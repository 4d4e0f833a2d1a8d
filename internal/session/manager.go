// ABOUTME: Session manager dispatching authentication to strategies by id
// ABOUTME: Tracks the current session, persists its token and restores it on startup

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-signin/internal/store"
)

// ErrUnknownStrategy is returned for a strategy id with no registered Strategy.
var ErrUnknownStrategy = errors.New("unknown authentication strategy")

// ErrNoSession is returned by Restore when nothing usable is stored.
var ErrNoSession = errors.New("no stored session")

// Manager authenticates through registered strategies and holds the current session.
type Manager struct {
	key        string
	tokens     store.Store
	logger     *slog.Logger
	now        func() time.Time
	strategies map[string]Strategy

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a Manager persisting tokens in tokens under key (usually
// the server URL). tokens may be nil to keep sessions in memory only.
func NewManager(key string, tokens store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		key:        key,
		tokens:     tokens,
		logger:     logger.With("component", "session"),
		now:        time.Now,
		strategies: make(map[string]Strategy),
	}
}

// RegisterStrategy adds s, replacing any strategy with the same id.
func (m *Manager) RegisterStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[s.ID()] = s
}

// Authenticate runs the strategy registered under strategyID. On success the
// session becomes current and its token is persisted; a persistence failure is
// logged and does not fail the login.
func (m *Manager) Authenticate(ctx context.Context, strategyID string, creds Credentials) (*Session, error) {
	m.mu.RLock()
	strategy, ok := m.strategies[strategyID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyID)
	}

	sess, err := strategy.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if sess.Strategy == "" {
		sess.Strategy = strategyID
	}

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	if m.tokens != nil {
		if err := m.tokens.SaveToken(ctx, &store.Token{
			Key:          m.key,
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			Subject:      sess.Subject,
			Strategy:     sess.Strategy,
			ExpiresAt:    sess.ExpiresAt,
			CreatedAt:    sess.IssuedAt,
		}); err != nil {
			m.logger.Warn("failed to persist session token", "error", err)
		}
	}

	m.logger.Info("authenticated", "strategy", strategyID, "subject", sess.Subject)
	return sess, nil
}

// Current returns the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AccessToken implements authorizer.TokenHolder. Expired sessions yield "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.current.Expired(m.now()) {
		return ""
	}
	return m.current.AccessToken
}

// Restore loads the stored token as the current session. Expired tokens are
// deleted and reported as ErrNoSession.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	if m.tokens == nil {
		return nil, ErrNoSession
	}

	tok, err := m.tokens.GetToken(ctx, m.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	if tok.Expired(m.now()) {
		if err := m.tokens.DeleteToken(ctx, m.key); err != nil {
			m.logger.Warn("failed to delete expired token", "error", err)
		}
		return nil, ErrNoSession
	}

	sess := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Subject:      tok.Subject,
		Strategy:     tok.Strategy,
		IssuedAt:     tok.CreatedAt,
		ExpiresAt:    tok.ExpiresAt,
	}

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	return sess, nil
}

// Invalidate drops the current session and its stored token.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if m.tokens == nil {
		return nil
	}
	if err := m.tokens.DeleteToken(ctx, m.key); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
