// ABOUTME: Form, state and result types for the sign-in orchestrator
// ABOUTME: Also declares the collaborator interfaces the orchestrator depends on

package signin

import (
	"context"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/notify"
	"github.com/2389/coven-signin/internal/session"
	"github.com/2389/coven-signin/internal/validation"
)

// Form field names.
const (
	FieldIdentification = validation.FieldIdentification
	FieldPassword       = validation.FieldPassword
)

// Credentials is what the user typed into the sign-in form.
type Credentials struct {
	Identification string
	Password       string
}

// FieldError marks a form field as invalid. An empty message means the field
// should only be flagged.
type FieldError struct {
	Field   string
	Message string
}

// State is the stage of the current sign-in attempt.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAuthenticating
	StatePostLoginLoading
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateAuthenticating:
		return "authenticating"
	case StatePostLoginLoading:
		return "post_login_loading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason explains a failed workflow.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonValidation
	ReasonVersionMismatch
	ReasonUserNotFound
	ReasonNotAuthorized
	ReasonPasswordResetRequired
	ReasonServer
	ReasonResetRejected
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonValidation:
		return "validation"
	case ReasonVersionMismatch:
		return "version_mismatch"
	case ReasonUserNotFound:
		return "user_not_found"
	case ReasonNotAuthorized:
		return "not_authorized"
	case ReasonPasswordResetRequired:
		return "password_reset_required"
	case ReasonServer:
		return "server"
	case ReasonResetRejected:
		return "reset_rejected"
	default:
		return "unknown"
	}
}

// Result is the outcome of one workflow invocation.
type Result struct {
	// Dropped is set when the invocation was discarded because the same
	// workflow was already running. All other fields are zero.
	Dropped bool

	State     State // StateSucceeded or StateFailed
	Reason    Reason
	Session   *session.Session
	FlowError string

	// FieldErrors marks fields the server rejected (unknown user, wrong
	// password, reset for an unknown email). Messages are usually empty.
	FieldErrors []FieldError

	// ValidationErrors are the validator's per-field messages when the form
	// was rejected before any request was made.
	ValidationErrors []FieldError
}

// OK reports whether the workflow ran and succeeded.
func (r Result) OK() bool {
	return !r.Dropped && r.State == StateSucceeded
}

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	Authenticate(ctx context.Context, strategyID string, creds session.Credentials) (*session.Session, error)
}

// Validator checks named form fields under a validation profile.
type Validator interface {
	Validate(ctx context.Context, profile string, in validation.Input, fields []string) ([]apierr.FieldDetail, error)
}

// SettingsLoader fetches site settings after login.
type SettingsLoader interface {
	Fetch(ctx context.Context) error
}

// ConfigLoader fetches private configuration after login.
type ConfigLoader interface {
	FetchAuthenticated(ctx context.Context) error
}

// Notifier raises user-visible alerts.
type Notifier interface {
	ShowAlert(message string, opts notify.Options)
	ShowAPIError(err error, opts notify.Options)
}

// Poster sends JSON POST requests.
type Poster interface {
	Post(ctx context.Context, url string, body, out any) error
}

// PathResolver builds absolute API URLs.
type PathResolver interface {
	API(parts ...string) string
}
