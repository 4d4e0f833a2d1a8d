// Package config handles configuration loading for coven-signin and fake-auth.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_SIGNIN_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/signin.yaml
//  3. ~/.config/coven/signin.yaml
//
// Files ending in .toml are read as TOML; anything else is YAML. Missing
// optional fields keep the values from Default.
//
// # Environment Variable Expansion
//
//	backend:
//	  jwt_secret: "${COVEN_SIGNIN_JWT_SECRET}"
//
// # Configuration Sections
//
// Server the client signs in to:
//
//	server:
//	  url: "http://localhost:2368"
//	  api_path: "/api/v0.1/"
//	  client_version: "0.1"   # sent as X-Client-Version
//	  grpc_addr: "localhost:2369"  # optional, token check in status
//	  timeout: "30s"
//
// Authentication strategy:
//
//	auth:
//	  strategy: "authenticator:password"
//
// Token persistence:
//
//	tokens:
//	  backend: "sqlite"        # sqlite, redis, memory
//	  path: "~/.local/share/coven/signin.db"
//	  redis_addr: "localhost:6379"
//	  redis_prefix: "coven:signin"
//	  redis_ttl: "720h"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Development auth server (fake-auth):
//
//	backend:
//	  listen_addr: "localhost:2368"
//	  grpc_addr: "localhost:2369"   # optional health service
//	  jwt_secret: "${COVEN_SIGNIN_JWT_SECRET}"   # at least 32 bytes
//	  server_version: "0.1"
//	  token_ttl: "24h"
//	  reset_window: "1m"
//	  users:
//	    - email: "ada@example.com"
//	      password: "correct horse"
package config
