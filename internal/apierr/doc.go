// Package apierr defines the error taxonomy shared by the API client, the
// session manager, the validation engine and the sign-in orchestrator.
//
// # Variants
//
//   - VersionMismatchError: the server rejected the client version
//   - AuthError: the authentication backend answered with a string code
//   - RequestError: any other non-2xx response, optionally with a list of
//     structured error details
//   - ValidationError: local validation failed with per-field details
//   - ErrValidationUnspecified: local validation failed without details
//
// Errors that match none of these (connection resets, timeouts, decoding
// failures) classify as KindUnknown.
//
// # Classification
//
// Classify maps any error to a Kind. Version mismatch is checked before every
// other variant so that a wrapped mismatch is never reported as a generic
// request failure:
//
//	switch apierr.Classify(err) {
//	case apierr.KindVersionMismatch:
//	    ...
//	}
package apierr
