// ABOUTME: gRPC interceptors authenticating requests with the authorization metadata key
// ABOUTME: Accepts the raw token written by the client's per-RPC credentials

package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates requests.
// Methods listed in public skip authentication.
func UnaryInterceptor(tokens TokenVerifier, logger *slog.Logger, public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(public))
	for _, m := range public {
		skip[m] = true
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}

		authCtx, err := extractAuth(ctx, tokens, logger, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(WithAuth(ctx, authCtx), req)
	}
}

func extractAuth(ctx context.Context, tokens TokenVerifier, logger *slog.Logger, method string) (*AuthContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing metadata", "method", method)
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		logAuthFailure(logger, ctx, "missing authorization", "method", method)
		return nil, status.Error(codes.Unauthenticated, "missing authorization")
	}

	token, errMsg := extractToken(values[0])
	if errMsg != "" {
		logAuthFailure(logger, ctx, errMsg, "method", method)
		return nil, status.Error(codes.Unauthenticated, errMsg)
	}

	subject, err := tokens.Verify(token)
	if err != nil {
		logAuthFailure(logger, ctx, "invalid token", "method", method, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return &AuthContext{Subject: subject, Token: token}, nil
}
