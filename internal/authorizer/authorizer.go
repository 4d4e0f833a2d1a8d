// ABOUTME: Maps a stored access token to the Authorization header for outgoing requests
// ABOUTME: Provides the pure Authorize rule plus an http.RoundTripper that applies it

package authorizer

import (
	"net/http"
)

// HeaderName is the header used to carry the access token.
const HeaderName = "Authorization"

// TokenHolder exposes the current access token. An empty string means no token.
type TokenHolder interface {
	AccessToken() string
}

// StaticToken is a TokenHolder with a fixed value.
type StaticToken string

// AccessToken returns the token itself.
func (t StaticToken) AccessToken() string { return string(t) }

// Header is a single header name/value pair.
type Header struct {
	Name  string
	Value string
}

// Authorize returns the header to attach for holder. ok is false when holder is
// nil or its token is empty.
func Authorize(holder TokenHolder) (h Header, ok bool) {
	if holder == nil {
		return Header{}, false
	}
	token := holder.AccessToken()
	if token == "" {
		return Header{}, false
	}
	return Header{Name: HeaderName, Value: token}, true
}

// Transport is an http.RoundTripper that authorizes every request with the
// holder's current token.
type Transport struct {
	Holder TokenHolder
	Base   http.RoundTripper
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(holder TokenHolder, base http.RoundTripper) *Transport {
	return &Transport{Holder: holder, Base: base}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// mutated; a clone carries the header.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	h, ok := Authorize(t.Holder)
	if !ok {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set(h.Name, h.Value)
	return base.RoundTrip(clone)
}
