// ABOUTME: Tagged error variants for API, authentication and validation failures
// ABOUTME: Classify switches any error onto a Kind with version mismatch taking priority

package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Authentication backend codes.
const (
	CodeUserNotFound          = "UserNotFoundException"
	CodeNotAuthorized         = "NotAuthorizedException"
	CodePasswordResetRequired = "PasswordResetRequiredException"
)

// ErrorTypeVersionMismatch is the errorType the server uses for client/server
// version incompatibility.
const ErrorTypeVersionMismatch = "VersionMismatchError"

// ErrValidationUnspecified is returned by validation profiles that reject input
// without producing structured details.
var ErrValidationUnspecified = errors.New("validation failed")

// Kind identifies which variant an error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindVersionMismatch
	KindUserNotFound
	KindNotAuthorized
	KindPasswordResetRequired
	KindAuth
	KindRequest
	KindValidation
	KindValidationUnspecified
)

func (k Kind) String() string {
	switch k {
	case KindVersionMismatch:
		return "version_mismatch"
	case KindUserNotFound:
		return "user_not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindPasswordResetRequired:
		return "password_reset_required"
	case KindAuth:
		return "auth"
	case KindRequest:
		return "request"
	case KindValidation:
		return "validation"
	case KindValidationUnspecified:
		return "validation_unspecified"
	default:
		return "unknown"
	}
}

// Detail is a single structured error entry from an API payload.
type Detail struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
	Context   string `json:"context,omitempty"`
}

// VersionMismatchError reports that the server refused the client version.
type VersionMismatchError struct {
	Status        int
	ClientVersion string
	Message       string
}

func (e *VersionMismatchError) Error() string {
	if e.Message != "" {
		return "version mismatch: " + e.Message
	}
	return fmt.Sprintf("version mismatch: client %s rejected", e.ClientVersion)
}

// AuthError is returned when the authentication backend rejects credentials
// with a string code.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Code, e.Message)
	}
	return "authentication failed: " + e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// RequestError is a non-2xx API response.
type RequestError struct {
	Status  int
	Code    string
	Message string
	Errors  []Detail
}

func (e *RequestError) Error() string {
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Errors[0].Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed (%d)", e.Status)
}

// FieldDetail is a validation problem attached to one form field.
type FieldDetail struct {
	Field   string
	Message string
}

// ValidationError reports local validation failures with details.
type ValidationError struct {
	Profile string
	Fields  []FieldDetail
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Profile, strings.Join(names, ", "))
}

// Classify returns the Kind of err. A nil error is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var mismatch *VersionMismatchError
	if errors.As(err, &mismatch) {
		return KindVersionMismatch
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		switch authErr.Code {
		case CodeUserNotFound:
			return KindUserNotFound
		case CodeNotAuthorized:
			return KindNotAuthorized
		case CodePasswordResetRequired:
			return KindPasswordResetRequired
		default:
			return KindAuth
		}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return KindRequest
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	if errors.Is(err, ErrValidationUnspecified) {
		return KindValidationUnspecified
	}

	return KindUnknown
}

// IsVersionMismatch reports whether err is, or wraps, a VersionMismatchError.
func IsVersionMismatch(err error) bool {
	return Classify(err) == KindVersionMismatch
}

// Details returns the structured error list carried by err, if any.
func Details(err error) []Detail {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Errors
	}
	return nil
}
