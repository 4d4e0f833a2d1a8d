// ABOUTME: SQLite implementation of the token Store using modernc.org/sqlite
// ABOUTME: Creates the schema on open and upserts one row per server key

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// Parent directories are created if needed. ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite token store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tokens (
			key           TEXT PRIMARY KEY,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			subject       TEXT NOT NULL DEFAULT '',
			strategy      TEXT NOT NULL DEFAULT '',
			expires_at    TEXT,
			created_at    TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveToken inserts or replaces the token for token.Key
func (s *SQLiteStore) SaveToken(ctx context.Context, token *Token) error {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var expiresAt sql.NullString
	if !token.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: token.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}

	query := `
		INSERT INTO tokens (key, access_token, refresh_token, subject, strategy, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			subject = excluded.subject,
			strategy = excluded.strategy,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		token.Key,
		token.AccessToken,
		token.RefreshToken,
		token.Subject,
		token.Strategy,
		expiresAt,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken retrieves the token for key
func (s *SQLiteStore) GetToken(ctx context.Context, key string) (*Token, error) {
	query := `
		SELECT key, access_token, refresh_token, subject, strategy, expires_at, created_at
		FROM tokens
		WHERE key = ?
	`

	var token Token
	var expiresAt sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&token.Key,
		&token.AccessToken,
		&token.RefreshToken,
		&token.Subject,
		&token.Strategy,
		&expiresAt,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}

	token.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if expiresAt.Valid && expiresAt.String != "" {
		token.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
	}

	return &token, nil
}

// DeleteToken removes the token for key
func (s *SQLiteStore) DeleteToken(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
