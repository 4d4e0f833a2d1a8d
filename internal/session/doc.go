// Package session owns the client-side authenticated session.
//
// A Manager dispatches Authenticate calls to a Strategy selected by id, keeps
// the resulting Session as the current one, and persists its token through a
// store.Store so a later run can Restore it. The Manager is the
// authorizer.TokenHolder the API client reads on every request.
//
// # Strategies
//
//   - PasswordStrategy ("authenticator:password"): exchanges username and
//     password for an access token at authentication/token
//
// Backend rejections that carry a code are returned as *apierr.AuthError so
// callers can switch on apierr.Classify.
package session
