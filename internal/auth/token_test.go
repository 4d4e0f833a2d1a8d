// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens and secret length

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTestSecret is a 32-byte secret that meets MinSecretLength requirement
var tokenTestSecret = []byte("token-test-secret-with-32-bytes!")

func newTestVerifier(t *testing.T, secret []byte) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(secret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("short"))
	if !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrSecretTooShort", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t, tokenTestSecret)

	token, err := verifier.Generate("ada@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "ada@example.com" {
		t.Errorf("Verify() = %q, want %q", got, "ada@example.com")
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t, tokenTestSecret)
	other := newTestVerifier(t, []byte("a-completely-different-32b-secret"))
	foreign, _ := other.Generate("ada@example.com", time.Hour)

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokenTestSecret)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "", ErrInvalidToken},
		{"garbage token", "not-a-jwt-token", ErrInvalidToken},
		{"malformed JWT", "header.payload.signature", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"missing sub", noSub, ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t, tokenTestSecret)
	verifier.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := verifier.Generate("ada@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	verifier.now = time.Now
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}
