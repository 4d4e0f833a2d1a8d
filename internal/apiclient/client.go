// ABOUTME: HTTP JSON client that resolves API paths and decodes error payloads
// ABOUTME: Stamps client version and request id headers and authorizes via the token holder

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-signin/internal/apierr"
	"github.com/2389/coven-signin/internal/authorizer"
)

// Header names sent with every request.
const (
	HeaderClientVersion = "X-Client-Version"
	HeaderRequestID     = "X-Request-ID"
)

const (
	defaultAPIPath = "/api/v0.1/"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// ErrInvalidBaseURL is returned by New for URLs without scheme or host.
var ErrInvalidBaseURL = errors.New("invalid base url")

// Client talks to the API.
type Client struct {
	base          *url.URL
	apiPath       string
	clientVersion string
	holder        atomic.Pointer[tokenSource]
	httpClient    *http.Client
	timeout       time.Duration
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIPath sets the API root path appended to the base URL.
func WithAPIPath(p string) Option {
	return func(c *Client) { c.apiPath = p }
}

// WithClientVersion sets the version sent in X-Client-Version.
func WithClientVersion(v string) Option {
	return func(c *Client) { c.clientVersion = v }
}

// WithTokenHolder sets where the access token is read from on every request.
func WithTokenHolder(h authorizer.TokenHolder) Option {
	return func(c *Client) { c.holder.Store(&tokenSource{h}) }
}

// WithHTTPClient replaces the underlying HTTP client. Its transport is wrapped
// with the authorizer.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		base:    u,
		apiPath: defaultAPIPath,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default().With("component", "apiclient")
	}

	var base http.RoundTripper
	if c.httpClient != nil {
		base = c.httpClient.Transport
		clone := *c.httpClient
		c.httpClient = &clone
	} else {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Transport = authorizer.NewTransport(c, base)

	return c, nil
}

// tokenSource boxes a TokenHolder so it can be swapped atomically.
type tokenSource struct {
	authorizer.TokenHolder
}

// SetTokenHolder swaps the token source. Used when the session manager is
// built after the client it depends on. Safe to call while requests are in
// flight; each request reads the source once.
func (c *Client) SetTokenHolder(h authorizer.TokenHolder) {
	c.holder.Store(&tokenSource{h})
}

// AccessToken implements authorizer.TokenHolder by delegating to the current
// token source.
func (c *Client) AccessToken() string {
	src := c.holder.Load()
	if src == nil || src.TokenHolder == nil {
		return ""
	}
	return src.AccessToken()
}

// API returns the absolute URL for an API resource, always with a trailing slash.
//
//	c.API("authentication", "passwordreset") // https://host/api/v0.1/authentication/passwordreset/
func (c *Client) API(parts ...string) string {
	var segments []string
	if root := strings.Trim(c.apiPath, "/"); root != "" {
		segments = append(segments, root)
	}
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segments = append(segments, p)
		}
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.Join(segments, "/") + "/"
	u.RawQuery = ""
	return u.String()
}

// Get performs a GET and decodes the JSON response into out (may be nil).
func (c *Client) Get(ctx context.Context, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, out)
}

// Post performs a POST with body encoded as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, rawURL string, body, out any) error {
	return c.do(ctx, http.MethodPost, rawURL, body, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientVersion != "" {
		req.Header.Set(HeaderClientVersion, c.clientVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", rawURL, "request_id", requestID, "error", err)
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorPayload covers both the {"errors": [...]} form and the flat
// {"code": ..., "message": ...} form used by the authentication backend.
type errorPayload struct {
	Errors  []apierr.Detail `json:"errors"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload errorPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Debug("non-JSON error body", "status", resp.StatusCode, "error", err)
			payload.Message = strings.TrimSpace(string(data))
		}
	}

	for _, d := range payload.Errors {
		if d.ErrorType == apierr.ErrorTypeVersionMismatch {
			return &apierr.VersionMismatchError{
				Status:        resp.StatusCode,
				ClientVersion: c.clientVersion,
				Message:       d.Message,
			}
		}
	}

	return &apierr.RequestError{
		Status:  resp.StatusCode,
		Code:    payload.Code,
		Message: payload.Message,
		Errors:  payload.Errors,
	}
}
