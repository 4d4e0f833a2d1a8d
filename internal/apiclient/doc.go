// Package apiclient is the JSON-over-HTTP client used by the sign-in flow.
//
// It resolves API paths against a configured base URL, stamps each request
// with the client version and a request id, authorizes requests through the
// authorizer package, and turns non-2xx responses into apierr variants:
//
//   - errorType "VersionMismatchError" becomes *apierr.VersionMismatchError
//   - everything else becomes *apierr.RequestError carrying the status, the
//     flat "code" field if present, and the "errors" list if present
//
// Transport failures are returned wrapped and carry no code.
package apiclient
