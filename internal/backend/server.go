// ABOUTME: Development auth server wiring HTTP routes, the gRPC health service and shutdown
// ABOUTME: Built from the backend section of the coven-signin configuration

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/coven-signin/internal/auth"
	"github.com/2389/coven-signin/internal/config"
	"github.com/2389/coven-signin/internal/dedupe"
)

// maxTrackedResets bounds the reset throttle cache.
const maxTrackedResets = 10000

// Server is the development auth server.
type Server struct {
	logger   *slog.Logger
	apiPath  string
	version  string
	tokenTTL time.Duration

	users    *directory
	verifier *auth.JWTVerifier
	resets   *dedupe.Cache
	settings []setting

	mu     sync.Mutex
	outbox []Reset

	listenAddr string
	grpcAddr   string
	httpServer *http.Server
	grpcServer *grpc.Server
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	bcryptCost int
}

// WithBcryptCost sets the cost used to hash plaintext passwords from config.
func WithBcryptCost(cost int) Option {
	return func(o *serverOptions) { o.bcryptCost = cost }
}

// New builds a Server from cfg. cfg.ValidateBackend must pass.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := serverOptions{bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Backend.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	users, err := newDirectory(cfg.Backend.Users, o.bcryptCost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:     logger.With("component", "backend"),
		apiPath:    normalizeAPIPath(cfg.Server.APIPath),
		version:    cfg.Backend.ServerVersion,
		tokenTTL:   cfg.Backend.TokenTTL,
		users:      users,
		verifier:   verifier,
		resets:     dedupe.New(cfg.Backend.ResetWindow, maxTrackedResets),
		settings:   defaultSettings(),
		listenAddr: cfg.Backend.ListenAddr,
		grpcAddr:   cfg.Backend.GRPCAddr,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}

	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryInterceptor(verifier, s.logger)))
	healthpb.RegisterHealthServer(s.grpcServer, health.NewServer())

	return s, nil
}

func normalizeAPIPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

func defaultSettings() []setting {
	return []setting{
		{Key: "title", Value: "Coven", Type: "blog"},
		{Key: "description", Value: "Development sign-in server", Type: "blog"},
		{Key: "active_theme", Value: "casper", Type: "theme"},
		{Key: "is_private", Value: false, Type: "private"},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	required := auth.HTTPAuthMiddleware(s.verifier)
	optional := auth.OptionalAuthMiddleware(s.verifier)

	api.HandleFunc("POST "+s.apiPath+"authentication/token/", s.handleToken)
	api.HandleFunc("POST "+s.apiPath+"authentication/passwordreset/", s.handlePasswordReset)
	api.Handle("GET "+s.apiPath+"settings/", optional(http.HandlerFunc(s.handleSettings)))
	api.Handle("GET "+s.apiPath+"configuration/private/", required(http.HandlerFunc(s.handlePrivateConfiguration)))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/", versionCheck(s.version, api))
	return mux
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Resets returns the password resets accepted so far.
func (s *Server) Resets() []Reset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reset, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// GRPCServer returns the gRPC server carrying the health service.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Run listens on the configured addresses until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listenAddr, err)
	}

	var grpcLn net.Listener
	if s.grpcAddr != "" {
		grpcLn, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			_ = httpLn.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
	}

	errCh := s.startServers(httpLn, grpcLn)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (s *Server) startServers(httpLn, grpcLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("HTTP server listening", "addr", httpLn.Addr().String(), "api_path", s.apiPath)
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if grpcLn != nil {
		go func() {
			s.logger.Info("gRPC server listening", "addr", grpcLn.Addr().String())
			if err := s.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}
}

// Shutdown stops both servers and the reset throttle.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down backend")

	err := s.httpServer.Shutdown(ctx)

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}

	s.resets.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
