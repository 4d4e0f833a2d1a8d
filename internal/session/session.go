// ABOUTME: Session type and claim extraction from access tokens
// ABOUTME: Reads subject and expiry from JWT claims without verifying the signature

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated session.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Subject      string
	Strategy     string
	IssuedAt     time.Time
	ExpiresAt    time.Time // zero when unknown
}

// Expired reports whether the session has a known expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}

// Credentials are what the password strategy exchanges for a token.
type Credentials struct {
	Username string
	Password string
}

// tokenClaims holds the claims read from an access token. The client cannot
// verify the signature; the server does that on every request.
type tokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func parseClaims(accessToken string) (tokenClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return tokenClaims{}, false
	}

	var out tokenClaims
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, true
}
