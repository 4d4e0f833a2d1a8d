// ABOUTME: Notification service holding keyed alerts and translating API errors into them
// ABOUTME: Alerts with a repeated key replace the earlier alert instead of stacking

package notify

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-signin/internal/apierr"
)

// Type is the severity of an alert.
type Type string

const (
	TypeError   Type = "error"
	TypeWarn    Type = "warn"
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
)

const (
	apiErrorKey         = "api-error"
	versionMismatchKey  = apiErrorKey + ".version-mismatch"
	defaultAPIErrorText = "There was a problem on the server, please try again."
	versionMismatchText = "This client is out of date. Please upgrade to continue."
)

// Options configures a single alert.
type Options struct {
	Type             Type
	Key              string
	DefaultErrorText string // used by ShowAPIError when the error has no message
}

// Alert is a user-visible message.
type Alert struct {
	ID        string
	Message   string
	Type      Type
	Key       string
	CreatedAt time.Time
}

// Sink renders alerts as they are raised.
type Sink interface {
	Render(Alert)
}

// Notifications is the alert list. The zero value is not usable; use New.
type Notifications struct {
	mu     sync.Mutex
	alerts []Alert
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Notifications service. sink may be nil.
func New(sink Sink, logger *slog.Logger) *Notifications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifications{
		sink:   sink,
		logger: logger.With("component", "notify"),
		now:    time.Now,
	}
}

// ShowAlert records and renders message. Type defaults to error.
func (n *Notifications) ShowAlert(message string, opts Options) {
	if opts.Type == "" {
		opts.Type = TypeError
	}

	alert := Alert{
		ID:        uuid.New().String(),
		Message:   message,
		Type:      opts.Type,
		Key:       opts.Key,
		CreatedAt: n.now(),
	}

	n.mu.Lock()
	if alert.Key != "" {
		n.removeLocked(alert.Key)
	}
	n.alerts = append(n.alerts, alert)
	sink := n.sink
	n.mu.Unlock()

	n.logger.Debug("alert", "type", alert.Type, "key", alert.Key, "message", alert.Message)
	if sink != nil {
		sink.Render(alert)
	}
}

// ShowAPIError raises alerts describing err. Keys are prefixed with "api-error".
func (n *Notifications) ShowAPIError(err error, opts Options) {
	if apierr.IsVersionMismatch(err) {
		n.ShowAlert(versionMismatchText, Options{Type: TypeError, Key: versionMismatchKey})
		return
	}

	if opts.Type == "" {
		opts.Type = TypeError
	}
	if opts.Key != "" {
		opts.Key = apiErrorKey + "." + opts.Key
	} else {
		opts.Key = apiErrorKey
	}

	if details := apierr.Details(err); len(details) > 0 {
		for _, d := range details {
			if d.Message != "" {
				n.ShowAlert(d.Message, opts)
			}
		}
		return
	}

	var reqErr *apierr.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		n.ShowAlert(reqErr.Message, opts)
		return
	}

	var authErr *apierr.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		n.ShowAlert(authErr.Message, opts)
		return
	}

	msg := opts.DefaultErrorText
	if msg == "" {
		msg = defaultAPIErrorText
	}
	n.ShowAlert(msg, opts)
}

// Alerts returns a copy of the current alerts in the order they were raised.
func (n *Notifications) Alerts() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Alert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

// Close removes alerts with key.
func (n *Notifications) Close(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(key)
}

// CloseAll removes every alert.
func (n *Notifications) CloseAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = nil
}

func (n *Notifications) removeLocked(key string) {
	kept := n.alerts[:0]
	for _, a := range n.alerts {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.alerts = kept
}
