// ABOUTME: gRPC variants of the authorization rule using per-RPC credentials and metadata
// ABOUTME: Emits the lower-cased authorization key with the raw token as value

package authorizer

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// PerRPCCredentials implements credentials.PerRPCCredentials on top of a TokenHolder.
type PerRPCCredentials struct {
	holder     TokenHolder
	requireTLS bool
}

// NewPerRPCCredentials returns credentials reading the token from holder at call time.
func NewPerRPCCredentials(holder TokenHolder, requireTLS bool) *PerRPCCredentials {
	return &PerRPCCredentials{holder: holder, requireTLS: requireTLS}
}

// GetRequestMetadata returns the authorization metadata, or nil when there is no token.
func (c *PerRPCCredentials) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	h, ok := Authorize(c.holder)
	if !ok {
		return nil, nil
	}
	return map[string]string{strings.ToLower(h.Name): h.Value}, nil
}

// RequireTransportSecurity reports whether the credentials need TLS.
func (c *PerRPCCredentials) RequireTransportSecurity() bool {
	return c.requireTLS
}

// OutgoingContext attaches the authorization metadata to ctx for a single call.
// ctx is returned unchanged when there is no token.
func OutgoingContext(ctx context.Context, holder TokenHolder) context.Context {
	h, ok := Authorize(holder)
	if !ok {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, strings.ToLower(h.Name), h.Value)
}
