// Package logging configures zerolog for the connector and the apiq CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above. Per-page detail lives here.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvLevel  = "APIQ_LOG_LEVEL"
	EnvPretty = "APIQ_LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by APIQ_LOG_LEVEL and
// APIQ_LOG_PRETTY. An unknown level is an error.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvLevel); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.Level = level
	}
	switch strings.ToLower(os.Getenv(EnvPretty)) {
	case "1", "true", "yes":
		cfg.Pretty = true
	}
	return cfg, nil
}

// ParseLevel validates a level name. "warning" and "off" are accepted as
// aliases.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off", "none":
		return LevelDisabled, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page plan and per-page fetches (page, page_size, rows)
//   - Individual request attempts and retry backoff
//   - Worker pool lifecycle
//
// Info: Normal operation events
//   - Query complete (strategy, rows, duration)
//   - Request succeeded after retry
//
// Warn: Warning conditions that don't prevent operation
//   - Error status responses (before retries run out)
//   - Rate limit throttling
//   - Failed rate limit header updates
//   - Query failed
//
// Error: Error conditions requiring attention
//   - Critical rate limit blocks
//   - CLI command failures
//
// Context Fields:
//   - source: Source name
//   - table: Table name
//   - query_id: Unique id of one Query call
//   - page, page_size: Page index and requested size
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network)
//   - duration: Request or query duration
