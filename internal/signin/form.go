// ABOUTME: Sign-in form state guarded by the orchestrator's mutex and per-attempt error collection
// ABOUTME: Each workflow invocation gathers its own errors and mirrors them into the form when it settles

package signin

import (
	"sort"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/validation"
)

type form struct {
	creds        Credentials
	hasValidated map[string]struct{}

	// Errors of the most recently settled attempt, for the accessors.
	last attempt
}

func newForm() form {
	return form{hasValidated: make(map[string]struct{})}
}

func (f *form) markValidated(fields ...string) {
	for _, name := range fields {
		f.hasValidated[name] = struct{}{}
	}
}

func (f *form) validatedFields() []string {
	out := make([]string, 0, len(f.hasValidated))
	for name := range f.hasValidated {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f *form) input() validation.Input {
	return validation.Input{
		Identification: f.creds.Identification,
		Password:       f.creds.Password,
	}
}

// attempt collects the errors raised by one workflow invocation. It is owned
// by that invocation's goroutine and needs no locking.
type attempt struct {
	flowError        string
	fieldErrors      []FieldError
	validationErrors []FieldError
}

func (a *attempt) addFieldError(field, msg string) {
	a.fieldErrors = append(a.fieldErrors, FieldError{Field: field, Message: msg})
}

func (a *attempt) addValidationDetails(details []apierr.FieldDetail) {
	for _, d := range details {
		a.validationErrors = append(a.validationErrors, FieldError{Field: d.Field, Message: d.Message})
	}
}

func (a attempt) clone() attempt {
	return attempt{
		flowError:        a.flowError,
		fieldErrors:      copyFieldErrors(a.fieldErrors),
		validationErrors: copyFieldErrors(a.validationErrors),
	}
}

func copyFieldErrors(in []FieldError) []FieldError {
	if len(in) == 0 {
		return nil
	}
	out := make([]FieldError, len(in))
	copy(out, in)
	return out
}
