// Package backend is a development authentication server.
//
// It implements the endpoints the sign-in client talks to, so the CLI and
// the tests can run against something real:
//
//	POST <api>/authentication/token/          password grant, returns a JWT
//	POST <api>/authentication/passwordreset/  {"passwordreset":[{"email":...}]}
//	GET  <api>/settings/?type=blog,theme      public settings
//	GET  <api>/configuration/private/         requires a token
//
// # Errors
//
// Credential failures use the flat {"code","message"} form with the codes
// UserNotFoundException, NotAuthorizedException and
// PasswordResetRequiredException. Everything else uses
// {"errors":[{"message","errorType"}]}.
//
// # Client version
//
// Requests carrying X-Client-Version must match the server's major.minor
// version, otherwise they are refused with errorType VersionMismatchError.
//
// # Password resets
//
// Reset emails are not sent. Each accepted request is recorded and logged.
// Repeated requests for the same address within backend.reset_window are
// refused with 429.
//
// # gRPC
//
// When backend.grpc_addr is set the standard health service is served
// there behind the token interceptor, so clients can check a stored token.
package backend
