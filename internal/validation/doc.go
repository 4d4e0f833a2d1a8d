// Package validation checks sign-in form input before anything is sent to the
// server.
//
// Two profiles exist:
//
//   - "signin": identification must be a non-empty e-mail address and password
//     must be non-empty. Rejections carry details (*apierr.ValidationError).
//   - "forgotPassword": identification must be a non-empty e-mail address.
//     Rejections carry no details (apierr.ErrValidationUnspecified); callers
//     show their own message.
//
// Only the fields a caller marks for validation are evaluated, so a form that
// has not been touched does not light up every field at once.
package validation
