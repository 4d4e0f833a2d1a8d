// ABOUTME: Login strategies that exchange credentials for a Session
// ABOUTME: PasswordStrategy posts to the token endpoint and maps backend codes to AuthError

package session

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-signin/internal/apierr"
)

// StrategyPassword is the id of the username/password strategy.
const StrategyPassword = "authenticator:password"

// Strategy authenticates credentials for one login method.
type Strategy interface {
	ID() string
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
}

// API is the subset of the API client the password strategy needs.
type API interface {
	API(parts ...string) string
	Post(ctx context.Context, url string, body, out any) error
}

// PasswordStrategy exchanges a username and password for an access token.
type PasswordStrategy struct {
	api API
	now func() time.Time
}

// NewPasswordStrategy creates a PasswordStrategy using api.
func NewPasswordStrategy(api API) *PasswordStrategy {
	return &PasswordStrategy{api: api, now: time.Now}
}

// ID implements Strategy.
func (s *PasswordStrategy) ID() string { return StrategyPassword }

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ErrEmptyToken is returned when the backend answers 2xx without an access token.
var ErrEmptyToken = errors.New("server returned no access token")

// Authenticate implements Strategy.
func (s *PasswordStrategy) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	var resp tokenResponse
	err := s.api.Post(ctx, s.api.API("authentication", "token"), tokenRequest{
		GrantType: "password",
		Username:  creds.Username,
		Password:  creds.Password,
	}, &resp)
	if err != nil {
		return nil, asAuthError(err)
	}
	if resp.AccessToken == "" {
		return nil, ErrEmptyToken
	}

	now := s.now()
	sess := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Strategy:     StrategyPassword,
		IssuedAt:     now,
	}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if claims, ok := parseClaims(resp.AccessToken); ok {
		sess.Subject = claims.Subject
		if !claims.IssuedAt.IsZero() {
			sess.IssuedAt = claims.IssuedAt
		}
		if !claims.ExpiresAt.IsZero() {
			sess.ExpiresAt = claims.ExpiresAt
		}
	}
	if sess.Subject == "" {
		sess.Subject = creds.Username
	}

	return sess, nil
}

// asAuthError turns a request error carrying a backend code into an AuthError.
// Version mismatches and transport errors pass through unchanged.
func asAuthError(err error) error {
	if apierr.IsVersionMismatch(err) {
		return err
	}
	var reqErr *apierr.RequestError
	if errors.As(err, &reqErr) && reqErr.Code != "" {
		return &apierr.AuthError{
			Code:    reqErr.Code,
			Message: reqErr.Message,
			Err:     err,
		}
	}
	return err
}
