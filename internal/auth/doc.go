// Package auth issues and verifies access tokens on the server side.
//
// # Tokens
//
// Access tokens are HS256 JWTs carrying the user as the "sub" claim:
//
//	verifier, err := auth.NewJWTVerifier(secret) // secret >= 32 bytes
//	token, err := verifier.Generate("ada@example.com", 24*time.Hour)
//	subject, err := verifier.Verify(token)
//
// # Transport
//
// The sign-in client sends the token as the whole Authorization header value,
// with no scheme. HTTPAuthMiddleware and UnaryInterceptor accept that form and
// also tolerate a "Bearer " prefix. The authenticated subject is available
// to handlers through FromContext.
package auth
