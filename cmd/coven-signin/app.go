// ABOUTME: Wires configuration into the API client, token store, session manager and orchestrator
// ABOUTME: One app is built per command invocation and closed when it returns

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/2389/coven-signin/internal/apiclient"
	"github.com/2389/coven-signin/internal/config"
	"github.com/2389/coven-signin/internal/logging"
	"github.com/2389/coven-signin/internal/notify"
	"github.com/2389/coven-signin/internal/session"
	"github.com/2389/coven-signin/internal/settings"
	"github.com/2389/coven-signin/internal/signin"
	"github.com/2389/coven-signin/internal/store"
	"github.com/2389/coven-signin/internal/validation"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger

	in           *bufio.Reader
	out          io.Writer
	errOut       io.Writer
	readPassword func(prompt string) (string, error)

	client   *apiclient.Client
	tokens   store.Store
	sessions *session.Manager
	notes    *notify.Notifications
	settings *settings.Settings
	private  *settings.Config
	orch     *signin.Orchestrator
}

func newApp(cfg *config.Config, s streams) (*app, error) {
	// Logs go to stderr so that `token` output stays pipeable.
	logger := logging.New(cfg.Logging, s.errOut)

	client, err := apiclient.New(cfg.Server.URL,
		apiclient.WithAPIPath(cfg.Server.APIPath),
		apiclient.WithClientVersion(cfg.Server.ClientVersion),
		apiclient.WithTimeout(cfg.Server.Timeout),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	tokens, err := openTokenStore(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.Server.URL, tokens, logger)
	sessions.RegisterStrategy(session.NewPasswordStrategy(client))
	client.SetTokenHolder(sessions)

	a := &app{
		cfg:          cfg,
		logger:       logger,
		in:           bufio.NewReader(s.in),
		out:          s.out,
		errOut:       s.errOut,
		readPassword: s.readPassword,
		client:       client,
		tokens:       tokens,
		sessions:     sessions,
		notes:        notify.New(notify.NewTerminalSink(s.out), logger),
		settings:     settings.NewSettings(client),
		private:      settings.NewConfig(client),
	}

	orch, err := signin.New(signin.Deps{
		Authenticator: sessions,
		Validator:     validation.NewEngine(),
		Settings:      a.settings,
		Config:        a.private,
		Notifier:      a.notes,
		Poster:        client,
		Paths:         client,
		StrategyID:    cfg.Auth.Strategy,
		Logger:        logger,
	})
	if err != nil {
		_ = tokens.Close()
		return nil, fmt.Errorf("creating sign-in orchestrator: %w", err)
	}
	orch.OnTransition(func(from, to signin.State) {
		logger.Debug("sign-in state", "from", from.String(), "to", to.String())
	})
	a.orch = orch

	return a, nil
}

// restore loads the stored session, if any. A missing session is not an error.
func (a *app) restore(ctx context.Context) (*session.Session, error) {
	sess, err := a.sessions.Restore(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, nil
	}
	return sess, err
}

func (a *app) Close() error {
	return a.tokens.Close()
}

// openTokenStore opens the configured token backend.
func openTokenStore(cfg config.TokensConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.TokensBackendMemory:
		return store.NewMockStore(), nil
	case config.TokensBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisStore(client, cfg.RedisPrefix, cfg.RedisTTL), nil
	case config.TokensBackendSQLite, "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating token directory: %w", err)
		}
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening token store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown token backend %q", cfg.Backend)
	}
}
