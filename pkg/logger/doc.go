// Package logger builds the engine's structured slog loggers: JSON for
// production aggregation, text for local development, configured through
// functional options or an environment-loaded Config.
package logger
