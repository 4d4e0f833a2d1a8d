// ABOUTME: Configuration loading and parsing for coven-signin and fake-auth
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Token store backends.
const (
	TokensBackendSQLite = "sqlite"
	TokensBackendRedis  = "redis"
	TokensBackendMemory = "memory"
)

// MinJWTSecretLength matches the verifier's minimum key size.
const MinJWTSecretLength = 32

// Config represents the complete coven-signin configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Tokens  TokensConfig  `yaml:"tokens" toml:"tokens"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Backend BackendConfig `yaml:"backend" toml:"backend"`
}

// ServerConfig describes the API server the client talks to
type ServerConfig struct {
	URL           string        `yaml:"url" toml:"url"`
	APIPath       string        `yaml:"api_path" toml:"api_path"`
	ClientVersion string        `yaml:"client_version" toml:"client_version"`
	GRPCAddr      string        `yaml:"grpc_addr" toml:"grpc_addr"` // optional, used by status
	Timeout       time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// AuthConfig selects the authentication strategy
type AuthConfig struct {
	Strategy string `yaml:"strategy" toml:"strategy"`
}

// TokensConfig holds token persistence configuration
type TokensConfig struct {
	Backend     string        `yaml:"backend" toml:"backend"`
	Path        string        `yaml:"path" toml:"path"`
	RedisAddr   string        `yaml:"redis_addr" toml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix" toml:"redis_prefix"`
	RedisTTL    time.Duration `yaml:"-" toml:"-"`

	RedisTTLRaw string `yaml:"redis_ttl" toml:"redis_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// BackendConfig configures the development auth server
type BackendConfig struct {
	ListenAddr    string        `yaml:"listen_addr" toml:"listen_addr"`
	GRPCAddr      string        `yaml:"grpc_addr" toml:"grpc_addr"`
	JWTSecret     string        `yaml:"jwt_secret" toml:"jwt_secret"`
	ServerVersion string        `yaml:"server_version" toml:"server_version"`
	TokenTTL      time.Duration `yaml:"-" toml:"-"`
	ResetWindow   time.Duration `yaml:"-" toml:"-"`
	Users         []UserConfig  `yaml:"users" toml:"users"`

	TokenTTLRaw    string `yaml:"token_ttl" toml:"token_ttl"`
	ResetWindowRaw string `yaml:"reset_window" toml:"reset_window"`
}

// UserConfig is an account known to the development auth server.
// Either Password or PasswordHash (bcrypt) must be set.
type UserConfig struct {
	Email         string `yaml:"email" toml:"email"`
	Name          string `yaml:"name" toml:"name"`
	Password      string `yaml:"password" toml:"password"`
	PasswordHash  string `yaml:"password_hash" toml:"password_hash"`
	ResetRequired bool   `yaml:"reset_required" toml:"reset_required"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:           "http://localhost:2368",
			APIPath:       "/api/v0.1/",
			ClientVersion: "0.1",
			Timeout:       30 * time.Second,
		},
		Auth: AuthConfig{
			Strategy: "authenticator:password",
		},
		Tokens: TokensConfig{
			Backend:     TokensBackendSQLite,
			Path:        defaultTokensPath(),
			RedisPrefix: "coven:signin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: BackendConfig{
			ListenAddr:    "localhost:2368",
			ServerVersion: "0.1",
			TokenTTL:      24 * time.Hour,
			ResetWindow:   time.Minute,
		},
	}
}

// DefaultPath returns the config file location.
// Priority: COVEN_SIGNIN_CONFIG env var > XDG_CONFIG_HOME/coven/signin.yaml > ~/.config/coven/signin.yaml
func DefaultPath() string {
	if envPath := os.Getenv("COVEN_SIGNIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "signin.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "signin.yaml")
}

// defaultTokensPath returns XDG_DATA_HOME/coven/signin.db or ~/.local/share/coven/signin.db.
func defaultTokensPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "signin.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven", "signin.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https scheme")
	}

	if c.Auth.Strategy == "" {
		return fmt.Errorf("auth.strategy is required")
	}

	switch c.Tokens.Backend {
	case TokensBackendSQLite:
		if c.Tokens.Path == "" {
			return fmt.Errorf("tokens.path is required for the sqlite backend")
		}
	case TokensBackendRedis:
		if c.Tokens.RedisAddr == "" {
			return fmt.Errorf("tokens.redis_addr is required for the redis backend")
		}
	case TokensBackendMemory:
	default:
		return fmt.Errorf("tokens.backend must be one of sqlite, redis, memory (got %q)", c.Tokens.Backend)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if c.Backend.JWTSecret != "" && len(c.Backend.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("backend.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	for i, u := range c.Backend.Users {
		if u.Email == "" {
			return fmt.Errorf("backend.users[%d].email is required", i)
		}
		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("backend.users[%d] needs password or password_hash", i)
		}
	}

	return nil
}

// ValidateBackend checks the fields the development auth server needs.
func (c *Config) ValidateBackend() error {
	if c.Backend.ListenAddr == "" {
		return fmt.Errorf("backend.listen_addr is required")
	}
	if c.Backend.JWTSecret == "" {
		return fmt.Errorf("backend.jwt_secret is required")
	}
	if len(c.Backend.Users) == 0 {
		return fmt.Errorf("backend.users must list at least one user")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.timeout", cfg.Server.TimeoutRaw, &cfg.Server.Timeout},
		{"tokens.redis_ttl", cfg.Tokens.RedisTTLRaw, &cfg.Tokens.RedisTTL},
		{"backend.token_ttl", cfg.Backend.TokenTTLRaw, &cfg.Backend.TokenTTL},
		{"backend.reset_window", cfg.Backend.ResetWindowRaw, &cfg.Backend.ResetWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
