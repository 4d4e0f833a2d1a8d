// ABOUTME: Package logging builds the slog loggers used by the coven-signin binaries
// ABOUTME: Text output is colorized, json output uses the standard JSON handler

// Package logging configures log/slog from a config.LoggingConfig.
package logging
