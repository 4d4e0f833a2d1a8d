// ABOUTME: Tests for the sign-in orchestrator workflows using in-memory collaborators
// ABOUTME: Covers error classification, drop policy, prefetch and flow messages

package signin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/notify"
	"github.com/2389/coven-signin/internal/session"
	"github.com/2389/coven-signin/internal/validation"
)

type fakeAuthenticator struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	fn      func(strategyID string, creds session.Credentials) (*session.Session, error)
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, strategyID string, creds session.Credentials) (*session.Session, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.fn != nil {
		return f.fn(strategyID, creds)
	}
	return &session.Session{AccessToken: "tok", Subject: creds.Username}, nil
}

type validateCall struct {
	profile string
	in      validation.Input
	fields  []string
}

type fakeValidator struct {
	mu      sync.Mutex
	calls   []validateCall
	details []apierr.FieldDetail
	err     error
}

func (f *fakeValidator) Validate(_ context.Context, profile string, in validation.Input, fields []string) ([]apierr.FieldDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, validateCall{profile: profile, in: in, fields: fields})
	return f.details, f.err
}

type fakeLoader struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLoader) Fetch(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeLoader) FetchAuthenticated(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type alertCall struct {
	message string
	opts    notify.Options
}

type apiErrorCall struct {
	err  error
	opts notify.Options
}

type fakeNotifier struct {
	mu        sync.Mutex
	alerts    []alertCall
	apiErrors []apiErrorCall
}

func (f *fakeNotifier) ShowAlert(message string, opts notify.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alertCall{message: message, opts: opts})
}

func (f *fakeNotifier) ShowAPIError(err error, opts notify.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiErrors = append(f.apiErrors, apiErrorCall{err: err, opts: opts})
}

type postCall struct {
	url  string
	body []byte
}

type fakeAPI struct {
	mu      sync.Mutex
	posts   []postCall
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeAPI) API(parts ...string) string {
	url := "http://ghost.test/api/v0.1"
	for _, p := range parts {
		url += "/" + p
	}
	return url + "/"
}

func (f *fakeAPI) Post(_ context.Context, url string, body, _ any) error {
	data, _ := json.Marshal(body)
	f.mu.Lock()
	f.posts = append(f.posts, postCall{url: url, body: data})
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.err
}

func (f *fakeAPI) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type harness struct {
	orch      *Orchestrator
	auth      *fakeAuthenticator
	validator *fakeValidator
	settings  *fakeLoader
	config    *fakeLoader
	notifier  *fakeNotifier
	api       *fakeAPI
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		auth:      &fakeAuthenticator{},
		validator: &fakeValidator{},
		settings:  &fakeLoader{},
		config:    &fakeLoader{},
		notifier:  &fakeNotifier{},
		api:       &fakeAPI{},
	}
	orch, err := New(Deps{
		Authenticator: h.auth,
		Validator:     h.validator,
		Settings:      h.settings,
		Config:        h.config,
		Notifier:      h.notifier,
		Poster:        h.api,
		Paths:         h.api,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

var goodCreds = Credentials{Identification: "ada@example.com", Password: "correct horse"}

func TestNew_MissingDependency(t *testing.T) {
	_, err := New(Deps{})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestValidateAndAuthenticate_Success(t *testing.T) {
	h := newHarness(t)

	var transitions []State
	h.orch.OnTransition(func(_, to State) { transitions = append(transitions, to) })

	res := h.orch.ValidateAndAuthenticate(context.Background(), goodCreds)

	require.True(t, res.OK())
	require.NotNil(t, res.Session)
	assert.Equal(t, "ada@example.com", res.Session.Subject)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Empty(t, res.FlowError)
	assert.Empty(t, res.FieldErrors)

	require.Len(t, h.validator.calls, 1)
	call := h.validator.calls[0]
	assert.Equal(t, validation.ProfileSignin, call.profile)
	assert.Equal(t, validation.Input{Identification: goodCreds.Identification, Password: goodCreds.Password}, call.in)
	assert.Equal(t, []string{FieldIdentification, FieldPassword}, call.fields)

	assert.EqualValues(t, 1, h.auth.calls.Load())
	assert.EqualValues(t, 1, h.settings.calls.Load())
	assert.EqualValues(t, 1, h.config.calls.Load())

	assert.Equal(t, []State{
		StateValidating, StateAuthenticating, StatePostLoginLoading, StateSucceeded, StateIdle,
	}, transitions)
	assert.Equal(t, StateIdle, h.orch.State())
	assert.True(t, h.orch.HasValidated(FieldPassword))
	assert.Equal(t, goodCreds, h.orch.Credentials())
}

func TestValidateAndAuthenticate_UsesStrategy(t *testing.T) {
	h := newHarness(t)
	var got string
	h.auth.fn = func(strategyID string, _ session.Credentials) (*session.Session, error) {
		got = strategyID
		return &session.Session{}, nil
	}

	h.orch.ValidateAndAuthenticate(context.Background(), goodCreds)
	assert.Equal(t, session.StrategyPassword, got)
}

func TestValidateAndAuthenticate_ValidationFailureSkipsAuthenticator(t *testing.T) {
	h := newHarness(t)
	h.validator.details = []apierr.FieldDetail{{Field: FieldPassword, Message: "Please enter a password."}}
	h.validator.err = &apierr.ValidationError{Profile: validation.ProfileSignin, Fields: h.validator.details}

	res := h.orch.ValidateAndAuthenticate(context.Background(), Credentials{Identification: "ada@example.com"})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonValidation, res.Reason)
	assert.Equal(t, "Please fill out the form to sign in.", res.FlowError)
	assert.Equal(t, res.FlowError, h.orch.FlowError())
	assert.Equal(t, []FieldError{{Field: FieldPassword, Message: "Please enter a password."}}, res.ValidationErrors)
	assert.Equal(t, res.ValidationErrors, h.orch.ValidationErrors())
	assert.Empty(t, res.FieldErrors)
	assert.Zero(t, h.auth.calls.Load())
	assert.Zero(t, h.settings.calls.Load())
	assert.Empty(t, h.notifier.alerts)
	assert.Equal(t, StateIdle, h.orch.State())
}

func TestAuthenticate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantReason  Reason
		wantFields  []FieldError
		wantAlert   bool
		wantAPIErrs int
	}{
		{
			name:       "user not found",
			err:        &apierr.AuthError{Code: apierr.CodeUserNotFound},
			wantReason: ReasonUserNotFound,
			wantFields: []FieldError{{Field: FieldIdentification}},
		},
		{
			name:       "not authorized",
			err:        &apierr.AuthError{Code: apierr.CodeNotAuthorized},
			wantReason: ReasonNotAuthorized,
			wantFields: []FieldError{{Field: FieldPassword}},
		},
		{
			name:        "version mismatch",
			err:         &apierr.VersionMismatchError{Status: 400},
			wantReason:  ReasonVersionMismatch,
			wantAPIErrs: 1,
		},
		{
			name:        "version mismatch wrapped",
			err:         &apierr.AuthError{Code: apierr.CodeUserNotFound, Err: &apierr.VersionMismatchError{}},
			wantReason:  ReasonVersionMismatch,
			wantAPIErrs: 1,
		},
		{
			name:       "forced password change",
			err:        &apierr.AuthError{Code: apierr.CodePasswordResetRequired},
			wantReason: ReasonPasswordResetRequired,
			wantAlert:  true,
		},
		{
			name:       "other auth code",
			err:        &apierr.AuthError{Code: "LimitExceededException"},
			wantReason: ReasonServer,
			wantAlert:  true,
		},
		{
			name:       "connection failure",
			err:        errors.New("dial tcp 127.0.0.1:2368: connect: connection refused"),
			wantReason: ReasonServer,
			wantAlert:  true,
		},
		{
			name:       "request error without code",
			err:        &apierr.RequestError{Status: 500},
			wantReason: ReasonServer,
			wantAlert:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.auth.fn = func(string, session.Credentials) (*session.Session, error) { return nil, tt.err }

			res := h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)

			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Nil(t, res.Session)
			assert.Equal(t, tt.wantFields, res.FieldErrors)
			assert.Empty(t, res.FlowError)
			assert.Len(t, h.notifier.apiErrors, tt.wantAPIErrs)
			assert.Zero(t, h.settings.calls.Load())
			assert.Zero(t, h.config.calls.Load())

			if tt.wantAlert {
				require.Len(t, h.notifier.alerts, 1)
				assert.Equal(t, "There was a problem on the server.", h.notifier.alerts[0].message)
				assert.Equal(t, notify.Options{Type: notify.TypeError, Key: "session.authenticate.failed"}, h.notifier.alerts[0].opts)
			} else {
				assert.Empty(t, h.notifier.alerts)
			}
		})
	}
}

func TestAuthenticate_NilSessionIsServerProblem(t *testing.T) {
	h := newHarness(t)
	h.auth.fn = func(string, session.Credentials) (*session.Session, error) { return nil, nil }

	var res Result
	require.NotPanics(t, func() {
		res = h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonServer, res.Reason)
	assert.Nil(t, res.Session)
	assert.Empty(t, res.FieldErrors)
	assert.Zero(t, h.settings.calls.Load())
	require.Len(t, h.notifier.alerts, 1)
	assert.Equal(t, MsgServerProblem, h.notifier.alerts[0].message)
	assert.Equal(t, StateIdle, h.orch.State())
}

func TestAuthenticate_PrefetchFailureStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.settings.err = errors.New("settings unavailable")

	res := h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)

	assert.True(t, res.OK())
	assert.EqualValues(t, 1, h.settings.calls.Load())
	assert.EqualValues(t, 1, h.config.calls.Load())
}

func TestAuthenticate_ClearsPreviousErrors(t *testing.T) {
	h := newHarness(t)
	h.auth.fn = func(string, session.Credentials) (*session.Session, error) {
		return nil, &apierr.AuthError{Code: apierr.CodeNotAuthorized}
	}
	res := h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	require.Len(t, res.FieldErrors, 1)

	h.auth.fn = nil
	res = h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	assert.True(t, res.OK())
	assert.Empty(t, res.FieldErrors)
	assert.Empty(t, h.orch.FieldErrors())
}

func TestAuthenticate_DropsWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.auth.entered = make(chan struct{})
	h.auth.release = make(chan struct{})

	done := make(chan Result)
	go func() {
		done <- h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	}()
	<-h.auth.entered

	stateBefore := h.orch.State()
	second := h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	assert.True(t, second.Dropped)
	assert.False(t, second.OK())
	assert.Equal(t, stateBefore, h.orch.State())

	// The submit path shares the authenticate guard.
	third := h.orch.ValidateAndAuthenticate(context.Background(), goodCreds)
	assert.True(t, third.Dropped)
	assert.Empty(t, h.validator.calls)
	assert.Equal(t, StateAuthenticating, h.orch.State())

	close(h.auth.release)
	first := <-done
	assert.True(t, first.OK())
	assert.EqualValues(t, 1, h.auth.calls.Load())
	assert.EqualValues(t, 1, h.settings.calls.Load())
}

func TestValidateAndAuthenticate_DropsWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.auth.entered = make(chan struct{})
	h.auth.release = make(chan struct{})

	done := make(chan Result)
	go func() {
		done <- h.orch.ValidateAndAuthenticate(context.Background(), goodCreds)
	}()
	<-h.auth.entered

	second := h.orch.ValidateAndAuthenticate(context.Background(), Credentials{Identification: "other@example.com"})
	assert.True(t, second.Dropped)
	assert.Equal(t, goodCreds, h.orch.Credentials())

	close(h.auth.release)
	assert.True(t, (<-done).OK())
	assert.Len(t, h.validator.calls, 1)
	assert.EqualValues(t, 1, h.auth.calls.Load())
}

func TestForgotten_Success(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Forgotten(context.Background(), "ada@example.com")

	assert.True(t, res.OK())
	require.Len(t, h.validator.calls, 1)
	assert.Equal(t, validation.ProfileForgotPassword, h.validator.calls[0].profile)
	assert.Equal(t, []string{FieldIdentification}, h.validator.calls[0].fields)
	assert.True(t, h.orch.HasValidated(FieldIdentification))

	require.Len(t, h.api.posts, 1)
	assert.Equal(t, "http://ghost.test/api/v0.1/authentication/passwordreset/", h.api.posts[0].url)
	assert.JSONEq(t, `{"passwordreset":[{"email":"ada@example.com"}]}`, string(h.api.posts[0].body))

	require.Len(t, h.notifier.alerts, 1)
	assert.Equal(t, "Please check your email for instructions.", h.notifier.alerts[0].message)
	assert.Equal(t, notify.Options{Type: notify.TypeInfo, Key: "forgot-password.send.success"}, h.notifier.alerts[0].opts)
}

func TestForgotten_ValidationWithoutDetails(t *testing.T) {
	h := newHarness(t)
	h.validator.err = apierr.ErrValidationUnspecified

	res := h.orch.Forgotten(context.Background(), "")

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonValidation, res.Reason)
	assert.Equal(t, "We need your email address to reset your password!", res.FlowError)
	assert.Zero(t, h.api.postCount())
	assert.Empty(t, h.notifier.alerts)
	assert.Empty(t, h.notifier.apiErrors)
}

func TestForgotten_StructuredValidationErrorUsesAPIError(t *testing.T) {
	h := newHarness(t)
	h.validator.err = &apierr.ValidationError{Profile: validation.ProfileForgotPassword}

	res := h.orch.Forgotten(context.Background(), "nope")

	assert.Equal(t, ReasonServer, res.Reason)
	assert.Zero(t, h.api.postCount())
	require.Len(t, h.notifier.apiErrors, 1)
	assert.Equal(t, "forgot-password.send", h.notifier.apiErrors[0].opts.Key)
}

func TestForgotten_RequestFailures(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantReason    Reason
		wantFlowError string
		wantFields    []FieldError
		wantAPIError  *notify.Options
	}{
		{
			name: "no user",
			err: &apierr.RequestError{Status: 404, Errors: []apierr.Detail{
				{Message: "no user with that email"},
			}},
			wantReason:    ReasonResetRejected,
			wantFlowError: "no user with that email",
			wantFields:    []FieldError{{Field: FieldIdentification}},
		},
		{
			name: "not found is case insensitive",
			err: &apierr.RequestError{Status: 404, Errors: []apierr.Detail{
				{Message: "User Not Found."}, {Message: "ignored"},
			}},
			wantReason:    ReasonResetRejected,
			wantFlowError: "User Not Found.",
			wantFields:    []FieldError{{Field: FieldIdentification}},
		},
		{
			name: "other structured message",
			err: &apierr.RequestError{Status: 429, Errors: []apierr.Detail{
				{Message: "Too many reset attempts."},
			}},
			wantReason:    ReasonResetRejected,
			wantFlowError: "Too many reset attempts.",
		},
		{
			name:         "version mismatch",
			err:          &apierr.VersionMismatchError{Status: 400},
			wantReason:   ReasonVersionMismatch,
			wantAPIError: &notify.Options{},
		},
		{
			name:       "unstructured failure",
			err:        errors.New("connection reset by peer"),
			wantReason: ReasonServer,
			wantAPIError: &notify.Options{
				DefaultErrorText: "There was a problem with the reset, please try again.",
				Key:              "forgot-password.send",
			},
		},
		{
			name:       "empty error list",
			err:        &apierr.RequestError{Status: 500, Errors: []apierr.Detail{}},
			wantReason: ReasonServer,
			wantAPIError: &notify.Options{
				DefaultErrorText: "There was a problem with the reset, please try again.",
				Key:              "forgot-password.send",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.api.err = tt.err

			res := h.orch.Forgotten(context.Background(), "ada@example.com")

			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantFlowError, res.FlowError)
			assert.Equal(t, tt.wantFields, res.FieldErrors)
			assert.Empty(t, h.notifier.alerts)

			if tt.wantAPIError != nil {
				require.Len(t, h.notifier.apiErrors, 1)
				assert.Equal(t, *tt.wantAPIError, h.notifier.apiErrors[0].opts)
				assert.Equal(t, tt.err, h.notifier.apiErrors[0].err)
			} else {
				assert.Empty(t, h.notifier.apiErrors)
			}
		})
	}
}

func TestForgotten_DropsWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.api.entered = make(chan struct{})
	h.api.release = make(chan struct{})

	done := make(chan Result)
	go func() { done <- h.orch.Forgotten(context.Background(), "ada@example.com") }()
	<-h.api.entered

	second := h.orch.Forgotten(context.Background(), "ada@example.com")
	assert.True(t, second.Dropped)

	// A different workflow is not blocked by the reset in flight.
	assert.True(t, h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds).OK())

	close(h.api.release)
	select {
	case res := <-done:
		assert.True(t, res.OK())
	case <-time.After(5 * time.Second):
		t.Fatal("forgotten did not finish")
	}
	assert.Equal(t, 1, h.api.postCount())
}

func TestForgotten_ClearsFlowError(t *testing.T) {
	h := newHarness(t)
	h.validator.err = apierr.ErrValidationUnspecified
	h.orch.Forgotten(context.Background(), "")
	require.NotEmpty(t, h.orch.FlowError())

	h.validator.err = nil
	res := h.orch.Forgotten(context.Background(), "ada@example.com")
	assert.True(t, res.OK())
	assert.Empty(t, h.orch.FlowError())
}

func TestForgotten_OverlappingAuthenticateKeepsErrorsApart(t *testing.T) {
	h := newHarness(t)
	h.api.err = &apierr.RequestError{Status: 404, Errors: []apierr.Detail{
		{Message: "no user with that email"},
	}}
	h.api.entered = make(chan struct{})
	h.api.release = make(chan struct{})
	h.auth.fn = func(string, session.Credentials) (*session.Session, error) {
		return nil, &apierr.AuthError{Code: apierr.CodeNotAuthorized}
	}

	done := make(chan Result)
	go func() { done <- h.orch.Forgotten(context.Background(), "nobody@example.com") }()
	<-h.api.entered

	auth := h.orch.Authenticate(context.Background(), session.StrategyPassword, goodCreds)
	assert.Equal(t, ReasonNotAuthorized, auth.Reason)
	assert.Equal(t, []FieldError{{Field: FieldPassword}}, auth.FieldErrors)
	assert.Empty(t, auth.FlowError)

	close(h.api.release)
	var reset Result
	select {
	case reset = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forgotten did not finish")
	}

	assert.Equal(t, ReasonResetRejected, reset.Reason)
	assert.Equal(t, "no user with that email", reset.FlowError)
	assert.Equal(t, []FieldError{{Field: FieldIdentification}}, reset.FieldErrors)

	// The accessors show the attempt that settled last.
	assert.Equal(t, reset.FlowError, h.orch.FlowError())
	assert.Equal(t, reset.FieldErrors, h.orch.FieldErrors())
}
