// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Reads the raw token from the Authorization header and adds identity to context

package auth

import (
	"net/http"
	"strings"
)

// extractToken pulls the token out of an Authorization header value. The
// sign-in client sends the token without a scheme; a "Bearer " prefix is
// accepted as well. Returns the token and an error message (empty if successful).
func extractToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	if strings.ContainsAny(token, " \t") {
		return "", "invalid authorization header format"
	}
	return token, ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"errors":[{"message":"` + msg + `","errorType":"UnauthorizedError"}]}`))
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT tokens
// and adds AuthContext to the request context.
func HTTPAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			authCtx := &AuthContext{Subject: subject, Token: token}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// OptionalAuthMiddleware attempts JWT auth but allows unauthenticated requests.
func OptionalAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			authCtx := &AuthContext{Subject: subject, Token: token}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
