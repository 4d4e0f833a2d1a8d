// Package authorizer decides whether and how a stored access token is attached
// to outgoing requests.
//
// The rule is deliberately small: a non-empty token produces exactly one
// header, "Authorization", whose value is the raw token. No scheme prefix is
// added. An empty token produces nothing and the request goes out
// unauthenticated.
//
// The same rule is applied to HTTP through Transport and to gRPC through
// PerRPCCredentials and OutgoingContext:
//
//	client := &http.Client{Transport: authorizer.NewTransport(sessions, nil)}
//	conn, err := grpc.NewClient(addr,
//	    grpc.WithTransportCredentials(insecure.NewCredentials()),
//	    grpc.WithPerRPCCredentials(authorizer.NewPerRPCCredentials(sessions, false)),
//	)
package authorizer
