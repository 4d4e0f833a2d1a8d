// ABOUTME: Redis implementation of the token Store using go-redis
// ABOUTME: Stores tokens as JSON with a TTL bounded by the token's own expiry

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "coven:signin"

// RedisStore implements Store on top of Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. ttl caps how long tokens without expiry are kept
// (0 keeps them until deleted).
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

type redisToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Subject      string    `json:"sub,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":token:" + k
}

// SaveToken stores token, expiring the entry when the token expires
func (s *RedisStore) SaveToken(ctx context.Context, token *Token) error {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	data, err := json.Marshal(redisToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Subject:      token.Subject,
		Strategy:     token.Strategy,
		ExpiresAt:    token.ExpiresAt.UTC(),
		CreatedAt:    createdAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	ttl := s.ttl
	if !token.ExpiresAt.IsZero() {
		remaining := time.Until(token.ExpiresAt)
		if remaining <= 0 {
			return s.DeleteToken(ctx, token.Key)
		}
		if ttl == 0 || remaining < ttl {
			ttl = remaining
		}
	}

	if err := s.client.Set(ctx, s.key(token.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken retrieves the token for key
func (s *RedisStore) GetToken(ctx context.Context, key string) (*Token, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	var rt redisToken
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}

	return &Token{
		Key:          key,
		AccessToken:  rt.AccessToken,
		RefreshToken: rt.RefreshToken,
		Subject:      rt.Subject,
		Strategy:     rt.Strategy,
		ExpiresAt:    rt.ExpiresAt,
		CreatedAt:    rt.CreatedAt,
	}, nil
}

// DeleteToken removes the token for key
func (s *RedisStore) DeleteToken(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
