// Package logging configures zerolog for the gateway and carries request
// ids through contexts.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every record as "service".
const ServiceName = "footy-gateway"

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service overrides ServiceName.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: ServiceName,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	service := cfg.Service
	if service == "" {
		service = ServiceName
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", service).Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the API request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext adds the request id of ctx to logger.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger.With().Str("request_id", id).Logger()
	}
	return logger
}

// Log Level Guidelines:
//
// Debug: cache traffic and derivations
//   - Fresh cache hits, derived day and league entries
//   - Standings or team statistics missing during predict
//   - Batch jobs and scheduler ticks
//
// Info: normal operation events
//   - Upstream fetches, warm runs, predict summaries
//   - Server and scheduler startup or shutdown
//
// Warn: degraded but served
//   - Stale entries served on upstream failure or under a hold
//   - Rate-limit holds started, calls suppressed
//   - Cache read or write failures, cache flushes
//
// Error: failures surfaced to callers
//   - 5xx API responses, failed scheduled warm runs
//   - Configuration problems
//
// Context Fields:
//   - component: package emitting the record
//   - request_id: API request id (X-Request-ID)
//   - tag, cache_key: gateway fetch identity
//   - league_id, date, season: football query scope
//   - run_id: warm run id
