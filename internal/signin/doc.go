// Package signin coordinates the sign-in and password-reset workflows.
//
// An Orchestrator owns the sign-in form (credentials, flow error, field
// errors) and runs three workflows against injected collaborators:
//
//   - ValidateAndAuthenticate: validate the whole form, then Authenticate
//   - Authenticate: call the authenticator, then prefetch settings and
//     private configuration in parallel
//   - Forgotten: validate the identification, then request a reset email
//
// # Drop policy
//
// Each workflow has its own in-flight guard. Invoking a workflow while a
// previous invocation of the same workflow is still running returns at once
// with Result.Dropped set. Nothing is queued and no collaborator is called.
//
// # Errors
//
// Workflows never return Go errors. Failures are classified with
// apierr.Classify, version mismatch first, and turned into one of: a field
// error, the form's flow error, or a notification. The outcome is reported
// in a Result.
//
// Each invocation collects its own errors, so a reset running alongside a
// sign-in never reports the sign-in's field errors. The form accessors
// (FlowError, FieldErrors, ValidationErrors) show the last settled attempt.
// Validator messages are kept apart from FieldErrors in ValidationErrors;
// FieldErrors only carries markers raised from server responses.
//
// # States
//
// Sign-in attempts move through Idle, Validating, Authenticating,
// PostLoginLoading and then Succeeded or Failed before settling back to Idle.
// Use OnTransition to observe each change.
package signin
