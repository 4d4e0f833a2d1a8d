// ABOUTME: Store interface and Token type for access token persistence
// ABOUTME: Shared by the SQLite, Redis and in-memory backends

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no token is stored for a key
var ErrNotFound = errors.New("not found")

// Token is a persisted access token and the metadata needed to restore a session
type Token struct {
	Key          string // server the token was issued by
	AccessToken  string
	RefreshToken string
	Subject      string
	Strategy     string
	ExpiresAt    time.Time // zero when the token carries no expiry
	CreatedAt    time.Time
}

// Expired reports whether the token has an expiry that is not after now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now)
}

// Store defines token persistence operations
type Store interface {
	SaveToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, key string) (*Token, error)
	DeleteToken(ctx context.Context, key string) error
	Close() error
}
