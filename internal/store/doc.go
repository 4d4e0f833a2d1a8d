// Package store persists access tokens between runs of the sign-in client.
//
// # Backends
//
//   - SQLiteStore: a local database file (modernc.org/sqlite, no cgo)
//   - RedisStore: a shared Redis instance, entries expire with the token
//   - MockStore: in-memory, for tests and the "memory" backend
//
// All three implement Store. Tokens are keyed by the server they were issued
// for, so one client can hold sessions for several servers at once.
//
// # SQLite Configuration
//
// The SQLite store enables WAL mode and creates its schema on open:
//
//	PRAGMA journal_mode=WAL;
//
// Default location: ~/.local/share/coven/signin.db
//
// # Error Handling
//
// GetToken returns ErrNotFound when no token is stored for a key. DeleteToken
// of a missing key is not an error.
package store
