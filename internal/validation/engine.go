// ABOUTME: Validation engine with the signin and forgotPassword profiles
// ABOUTME: Returns per-field problems plus a profile-specific rejection error

package validation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/2389/coven-signin/internal/apierr"
)

// Profile names.
const (
	ProfileSignin         = "signin"
	ProfileForgotPassword = "forgotPassword"
)

// Field names.
const (
	FieldIdentification = "identification"
	FieldPassword       = "password"
)

// ErrUnknownProfile is returned for profiles the engine does not define.
var ErrUnknownProfile = errors.New("unknown validation profile")

// Input is the form data being validated.
type Input struct {
	Identification string
	Password       string
}

type rule func(in Input) string

type profile struct {
	rules    map[string]rule
	detailed bool
}

// Engine validates Input against named profiles.
type Engine struct {
	profiles map[string]profile
}

// NewEngine returns an Engine with the built-in profiles.
func NewEngine() *Engine {
	return &Engine{
		profiles: map[string]profile{
			ProfileSignin: {
				rules: map[string]rule{
					FieldIdentification: signinIdentification,
					FieldPassword:       requirePassword,
				},
				detailed: true,
			},
			ProfileForgotPassword: {
				rules: map[string]rule{
					FieldIdentification: forgotIdentification,
				},
			},
		},
	}
}

// Validate evaluates fields of in under name. It returns every problem found
// and, when there is at least one, the profile's rejection error.
func (e *Engine) Validate(_ context.Context, name string, in Input, fields []string) ([]apierr.FieldDetail, error) {
	p, ok := e.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	var problems []apierr.FieldDetail
	for _, field := range fields {
		r, ok := p.rules[field]
		if !ok {
			continue
		}
		if msg := r(in); msg != "" {
			problems = append(problems, apierr.FieldDetail{Field: field, Message: msg})
		}
	}

	if len(problems) == 0 {
		return nil, nil
	}
	if p.detailed {
		return problems, &apierr.ValidationError{Profile: name, Fields: problems}
	}
	return problems, apierr.ErrValidationUnspecified
}

func signinIdentification(in Input) string {
	id := strings.TrimSpace(in.Identification)
	if id == "" {
		return "Please enter an email."
	}
	if !isEmail(id) {
		return "Invalid email."
	}
	return ""
}

func forgotIdentification(in Input) string {
	id := strings.TrimSpace(in.Identification)
	if id == "" || !isEmail(id) {
		return "Invalid email."
	}
	return ""
}

func requirePassword(in Input) string {
	if strings.TrimSpace(in.Password) == "" {
		return "Please enter a password."
	}
	return ""
}

// isEmail accepts a bare addr-spec with a dotted domain; display names such as
// "Jo <jo@example.com>" are rejected.
func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
