// ABOUTME: Sign-in orchestrator running the authenticate, validate-and-authenticate and forgotten workflows
// ABOUTME: Each workflow drops duplicate invocations and absorbs every error into a Result

package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/notify"
	"github.com/2389/coven-signin/internal/session"
	"github.com/2389/coven-signin/internal/validation"
)

// User-facing messages and alert keys.
const (
	MsgFillOutForm   = "Please fill out the form to sign in."
	MsgServerProblem = "There was a problem on the server."
	MsgNeedEmail     = "We need your email address to reset your password!"
	MsgCheckEmail    = "Please check your email for instructions."
	MsgResetProblem  = "There was a problem with the reset, please try again."

	KeyAuthenticateFailed = "session.authenticate.failed"
	KeyResetSent          = "forgot-password.send.success"
	KeyResetFailed        = "forgot-password.send"
)

// ErrNoSession is reported when an authenticator returns neither a session
// nor an error.
var ErrNoSession = errors.New("signin: authenticator returned no session")

// ErrMissingDependency is returned by New when a collaborator is nil.
var ErrMissingDependency = errors.New("signin: missing dependency")

var userNotFoundPattern = regexp.MustCompile(`(?i)no user|not found`)

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Authenticator Authenticator
	Validator     Validator
	Settings      SettingsLoader
	Config        ConfigLoader
	Notifier      Notifier
	Poster        Poster
	Paths         PathResolver

	// StrategyID is passed to the Authenticator by ValidateAndAuthenticate.
	// Defaults to session.StrategyPassword.
	StrategyID string
	Logger     *slog.Logger
}

type resetEntry struct {
	Email string `json:"email"`
}

type resetRequest struct {
	PasswordReset []resetEntry `json:"passwordreset"`
}

// Orchestrator owns the sign-in form and runs the workflows.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	authenticating atomic.Bool
	submitting     atomic.Bool
	resetting      atomic.Bool

	mu           sync.Mutex
	form         form
	state        State
	onTransition func(from, to State)
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Authenticator == nil:
		return nil, fmt.Errorf("%w: authenticator", ErrMissingDependency)
	case deps.Validator == nil:
		return nil, fmt.Errorf("%w: validator", ErrMissingDependency)
	case deps.Settings == nil:
		return nil, fmt.Errorf("%w: settings loader", ErrMissingDependency)
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config loader", ErrMissingDependency)
	case deps.Notifier == nil:
		return nil, fmt.Errorf("%w: notifier", ErrMissingDependency)
	case deps.Poster == nil:
		return nil, fmt.Errorf("%w: poster", ErrMissingDependency)
	case deps.Paths == nil:
		return nil, fmt.Errorf("%w: path resolver", ErrMissingDependency)
	}
	if deps.StrategyID == "" {
		deps.StrategyID = session.StrategyPassword
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		deps:   deps,
		logger: logger.With("component", "signin"),
		form:   newForm(),
	}, nil
}

// OnTransition registers fn to be called on every state change. fn runs on
// the workflow's goroutine and must not block.
func (o *Orchestrator) OnTransition(fn func(from, to State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onTransition = fn
}

// State returns the current sign-in state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetCredentials records the latest form input without running a workflow.
func (o *Orchestrator) SetCredentials(creds Credentials) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.form.creds = creds
}

// Credentials returns the form input.
func (o *Orchestrator) Credentials() Credentials {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form.creds
}

// FlowError returns the form-level error message of the last settled
// workflow, if any.
func (o *Orchestrator) FlowError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form.last.flowError
}

// FieldErrors returns the field markers of the last settled workflow.
func (o *Orchestrator) FieldErrors() []FieldError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyFieldErrors(o.form.last.fieldErrors)
}

// ValidationErrors returns the validator's messages from the last settled
// workflow.
func (o *Orchestrator) ValidationErrors() []FieldError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyFieldErrors(o.form.last.validationErrors)
}

// HasValidated reports whether field has been marked for validation.
func (o *Orchestrator) HasValidated(field string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.form.hasValidated[field]
	return ok
}

// ValidateAndAuthenticate validates the whole form and, if it passes,
// authenticates with the configured strategy.
func (o *Orchestrator) ValidateAndAuthenticate(ctx context.Context, creds Credentials) Result {
	if !o.submitting.CompareAndSwap(false, true) {
		o.logger.Debug("dropping sign-in submit, already in flight")
		return Result{Dropped: true}
	}
	defer o.submitting.Store(false)

	if o.authenticating.Load() {
		o.logger.Debug("dropping sign-in submit, authenticate in flight")
		return Result{Dropped: true}
	}

	log := o.logger.With("workflow", "validate_and_authenticate", "attempt_id", uuid.New().String())

	o.mu.Lock()
	o.form.creds = creds
	o.form.last = attempt{}
	o.form.markValidated(FieldIdentification, FieldPassword)
	in := o.form.input()
	fields := o.form.validatedFields()
	o.mu.Unlock()

	o.transition(StateValidating)

	var att attempt
	details, err := o.deps.Validator.Validate(ctx, validation.ProfileSignin, in, fields)
	if err != nil {
		log.Info("sign-in form rejected", "error", err)
		att.flowError = MsgFillOutForm
		att.addValidationDetails(details)
		return o.settle(&att, StateFailed, ReasonValidation, nil)
	}

	if !o.authenticating.CompareAndSwap(false, true) {
		log.Debug("dropping authenticate, already in flight")
		o.transition(StateIdle)
		return Result{Dropped: true}
	}
	defer o.authenticating.Store(false)

	return o.authenticate(ctx, log, &att, o.deps.StrategyID, creds)
}

// Authenticate signs in with strategyID and prefetches settings and private
// configuration on success.
func (o *Orchestrator) Authenticate(ctx context.Context, strategyID string, creds Credentials) Result {
	if !o.authenticating.CompareAndSwap(false, true) {
		o.logger.Debug("dropping authenticate, already in flight")
		return Result{Dropped: true}
	}
	defer o.authenticating.Store(false)

	log := o.logger.With("workflow", "authenticate", "attempt_id", uuid.New().String())

	o.mu.Lock()
	o.form.creds = creds
	o.form.last = attempt{}
	o.mu.Unlock()

	return o.authenticate(ctx, log, &attempt{}, strategyID, creds)
}

func (o *Orchestrator) authenticate(ctx context.Context, log *slog.Logger, att *attempt, strategyID string, creds Credentials) Result {
	o.transition(StateAuthenticating)

	sess, err := o.deps.Authenticator.Authenticate(ctx, strategyID, session.Credentials{
		Username: creds.Identification,
		Password: creds.Password,
	})
	if err == nil && sess == nil {
		err = ErrNoSession
	}
	if err != nil {
		return o.settle(att, StateFailed, o.handleAuthError(log, att, err), nil)
	}

	log.Info("authenticated", "strategy", strategyID, "subject", sess.Subject)
	o.transition(StatePostLoginLoading)
	o.prefetch(ctx, log)

	return o.settle(att, StateSucceeded, ReasonNone, sess)
}

// prefetch loads settings and private configuration concurrently and waits
// for both.
func (o *Orchestrator) prefetch(ctx context.Context, log *slog.Logger) {
	var g errgroup.Group
	g.Go(func() error { return o.deps.Settings.Fetch(ctx) })
	g.Go(func() error { return o.deps.Config.FetchAuthenticated(ctx) })
	if err := g.Wait(); err != nil {
		log.Warn("post-login prefetch failed", "error", err)
	}
}

func (o *Orchestrator) handleAuthError(log *slog.Logger, att *attempt, err error) Reason {
	switch kind := apierr.Classify(err); kind {
	case apierr.KindVersionMismatch:
		log.Warn("authentication rejected client version", "error", err)
		o.deps.Notifier.ShowAPIError(err, notify.Options{})
		return ReasonVersionMismatch

	case apierr.KindUserNotFound:
		log.Info("authentication failed: unknown user")
		att.addFieldError(FieldIdentification, "")
		return ReasonUserNotFound

	case apierr.KindNotAuthorized:
		log.Info("authentication failed: wrong password")
		att.addFieldError(FieldPassword, "")
		return ReasonNotAuthorized

	case apierr.KindPasswordResetRequired:
		// TODO: prompt for a new password once session.Manager exposes the
		// password-change challenge response.
		log.Warn("forced password change is not supported", "error", err)
		o.showServerProblem()
		return ReasonPasswordResetRequired

	default:
		log.Error("authentication failed", "kind", kind, "error", err)
		o.showServerProblem()
		return ReasonServer
	}
}

func (o *Orchestrator) showServerProblem() {
	o.deps.Notifier.ShowAlert(MsgServerProblem, notify.Options{
		Type: notify.TypeError,
		Key:  KeyAuthenticateFailed,
	})
}

// Forgotten validates identification and asks the server to send a password
// reset email to it.
func (o *Orchestrator) Forgotten(ctx context.Context, identification string) Result {
	if !o.resetting.CompareAndSwap(false, true) {
		o.logger.Debug("dropping password reset, already in flight")
		return Result{Dropped: true}
	}
	defer o.resetting.Store(false)

	log := o.logger.With("workflow", "forgotten", "attempt_id", uuid.New().String())

	o.mu.Lock()
	o.form.creds.Identification = identification
	o.form.last = attempt{}
	o.form.markValidated(FieldIdentification)
	in := o.form.input()
	o.mu.Unlock()

	var att attempt
	details, err := o.deps.Validator.Validate(ctx, validation.ProfileForgotPassword, in, []string{FieldIdentification})
	if err != nil {
		att.addValidationDetails(details)

		if apierr.Classify(err) == apierr.KindValidationUnspecified {
			log.Info("reset form rejected", "error", err)
			att.flowError = MsgNeedEmail
			return o.record(&att, StateFailed, ReasonValidation, nil)
		}
		return o.record(&att, StateFailed, o.handleResetError(log, &att, err), nil)
	}

	url := o.deps.Paths.API("authentication", "passwordreset")
	body := resetRequest{PasswordReset: []resetEntry{{Email: identification}}}
	if err := o.deps.Poster.Post(ctx, url, body, nil); err != nil {
		return o.record(&att, StateFailed, o.handleResetError(log, &att, err), nil)
	}

	log.Info("password reset requested")
	o.deps.Notifier.ShowAlert(MsgCheckEmail, notify.Options{
		Type: notify.TypeInfo,
		Key:  KeyResetSent,
	})
	return o.record(&att, StateSucceeded, ReasonNone, nil)
}

func (o *Orchestrator) handleResetError(log *slog.Logger, att *attempt, err error) Reason {
	if apierr.IsVersionMismatch(err) {
		log.Warn("reset rejected client version", "error", err)
		o.deps.Notifier.ShowAPIError(err, notify.Options{})
		return ReasonVersionMismatch
	}

	if details := apierr.Details(err); len(details) > 0 {
		msg := details[0].Message
		log.Info("reset rejected", "message", msg)
		att.flowError = msg
		if userNotFoundPattern.MatchString(msg) {
			att.addFieldError(FieldIdentification, "")
		}
		return ReasonResetRejected
	}

	log.Error("reset request failed", "error", err)
	o.deps.Notifier.ShowAPIError(err, notify.Options{
		DefaultErrorText: MsgResetProblem,
		Key:              KeyResetFailed,
	})
	return ReasonServer
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	fn := o.onTransition
	o.mu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
}

// settle moves the sign-in state machine into its final state, records the
// attempt and returns the state machine to Idle.
func (o *Orchestrator) settle(att *attempt, final State, reason Reason, sess *session.Session) Result {
	o.transition(final)
	res := o.record(att, final, reason, sess)
	o.transition(StateIdle)
	return res
}

// record mirrors att into the form for the accessors and builds the Result
// from att alone, so overlapping workflows never see each other's errors.
func (o *Orchestrator) record(att *attempt, final State, reason Reason, sess *session.Session) Result {
	o.mu.Lock()
	o.form.last = att.clone()
	o.mu.Unlock()

	return Result{
		State:            final,
		Reason:           reason,
		Session:          sess,
		FlowError:        att.flowError,
		FieldErrors:      copyFieldErrors(att.fieldErrors),
		ValidationErrors: copyFieldErrors(att.validationErrors),
	}
}
