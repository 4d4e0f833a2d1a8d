// ABOUTME: Tests for the session manager and password strategy
// ABOUTME: Covers dispatch, claim parsing, error code mapping, persistence and restore

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-signin/internal/apiclient"
	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/store"
)

type stubStrategy struct {
	id    string
	sess  *Session
	err   error
	calls int
}

func (s *stubStrategy) ID() string { return s.id }

func (s *stubStrategy) Authenticate(_ context.Context, _ Credentials) (*Session, error) {
	s.calls++
	return s.sess, s.err
}

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("session-test-secret"))
	require.NoError(t, err)
	return s
}

func TestManager_UnknownStrategy(t *testing.T) {
	m := NewManager("srv", nil, nil)
	_, err := m.Authenticate(context.Background(), "authenticator:nope", Credentials{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestManager_AuthenticatePersists(t *testing.T) {
	tokens := store.NewMockStore()
	m := NewManager("srv", tokens, nil)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	m.RegisterStrategy(&stubStrategy{id: "s", sess: &Session{AccessToken: "tok", Subject: "u1", ExpiresAt: exp}})

	sess, err := m.Authenticate(context.Background(), "s", Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s", sess.Strategy)
	assert.Same(t, sess, m.Current())
	assert.Equal(t, "tok", m.AccessToken())

	stored, err := tokens.GetToken(context.Background(), "srv")
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.AccessToken)
	assert.Equal(t, "u1", stored.Subject)
	assert.True(t, exp.Equal(stored.ExpiresAt))
}

func TestManager_PersistFailureDoesNotFailLogin(t *testing.T) {
	tokens := store.NewMockStore()
	tokens.SaveErr = errors.New("read-only")
	m := NewManager("srv", tokens, nil)
	m.RegisterStrategy(&stubStrategy{id: "s", sess: &Session{AccessToken: "tok"}})

	_, err := m.Authenticate(context.Background(), "s", Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "tok", m.AccessToken())
}

func TestManager_StrategyErrorLeavesNoSession(t *testing.T) {
	m := NewManager("srv", store.NewMockStore(), nil)
	want := &apierr.AuthError{Code: apierr.CodeNotAuthorized}
	m.RegisterStrategy(&stubStrategy{id: "s", err: want})

	_, err := m.Authenticate(context.Background(), "s", Credentials{})
	assert.Same(t, want, err)
	assert.Nil(t, m.Current())
	assert.Empty(t, m.AccessToken())
}

func TestManager_AccessTokenEmptyWhenExpired(t *testing.T) {
	m := NewManager("srv", nil, nil)
	m.RegisterStrategy(&stubStrategy{id: "s", sess: &Session{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}})
	_, err := m.Authenticate(context.Background(), "s", Credentials{})
	require.NoError(t, err)
	assert.Empty(t, m.AccessToken())
}

func TestManager_RestoreAndInvalidate(t *testing.T) {
	ctx := context.Background()
	tokens := store.NewMockStore()
	require.NoError(t, tokens.SaveToken(ctx, &store.Token{
		Key:         "srv",
		AccessToken: "restored",
		Subject:     "u1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	m := NewManager("srv", tokens, nil)
	sess, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "restored", sess.AccessToken)
	assert.Equal(t, "restored", m.AccessToken())

	require.NoError(t, m.Invalidate(ctx))
	assert.Nil(t, m.Current())
	assert.Equal(t, 0, tokens.Len())

	_, err = m.Restore(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RestoreDropsExpired(t *testing.T) {
	ctx := context.Background()
	tokens := store.NewMockStore()
	require.NoError(t, tokens.SaveToken(ctx, &store.Token{
		Key:         "srv",
		AccessToken: "old",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	m := NewManager("srv", tokens, nil)
	_, err := m.Restore(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 0, tokens.Len())
}

func TestManager_RestoreWithoutStore(t *testing.T) {
	_, err := NewManager("srv", nil, nil).Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func newTokenServer(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestPasswordStrategy_Success(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	var got tokenRequest
	var access string

	api := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0.1/authentication/token/", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: access, ExpiresIn: 60, TokenType: "Bearer"})
	})
	access = signedToken(t, "user-9", exp)

	sess, err := NewPasswordStrategy(api).Authenticate(context.Background(), Credentials{Username: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, tokenRequest{GrantType: "password", Username: "a@b.c", Password: "pw"}, got)
	assert.Equal(t, access, sess.AccessToken)
	assert.Equal(t, "user-9", sess.Subject)
	assert.True(t, exp.Equal(sess.ExpiresAt), "claims expiry wins over expires_in")
	assert.Equal(t, StrategyPassword, sess.Strategy)
}

func TestPasswordStrategy_OpaqueToken(t *testing.T) {
	api := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "opaque", ExpiresIn: 60})
	})

	s := NewPasswordStrategy(api)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	sess, err := s.Authenticate(context.Background(), Credentials{Username: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", sess.Subject)
	assert.Equal(t, fixed.Add(time.Minute), sess.ExpiresAt)
}

func TestPasswordStrategy_EmptyToken(t *testing.T) {
	api := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := NewPasswordStrategy(api).Authenticate(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestPasswordStrategy_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		want apierr.Kind
	}{
		{name: "user not found", body: `{"code":"UserNotFoundException","message":"User does not exist."}`, want: apierr.KindUserNotFound},
		{name: "not authorized", body: `{"code":"NotAuthorizedException","message":"Incorrect username or password."}`, want: apierr.KindNotAuthorized},
		{name: "reset required", body: `{"code":"PasswordResetRequiredException"}`, want: apierr.KindPasswordResetRequired},
		{name: "no code", body: `{"errors":[{"message":"boom"}]}`, want: apierr.KindRequest},
		{name: "version mismatch", body: `{"errors":[{"message":"upgrade","errorType":"VersionMismatchError"}]}`, want: apierr.KindVersionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewPasswordStrategy(api).Authenticate(context.Background(), Credentials{})
			require.Error(t, err)
			assert.Equal(t, tt.want, apierr.Classify(err))
		})
	}
}
