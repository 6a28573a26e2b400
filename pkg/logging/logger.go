// Package logging configures zerolog for the catalog client and derives
// per-component loggers from a shared base.
//
// Levels used across the module:
//
//	debug  cache and snapshot hits, session lifecycle, per-page revalidation
//	info   completed initial loads, pruned pages, warm starts, server lifecycle
//	warn   failed revalidations and operations, snapshot store errors
//	error  invalid configuration, unavailable services
//
// Common fields: component, signature, page, max_page, operation,
// status_code, error_class, pruned, duration.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentField is the field every derived logger is tagged with.
const ComponentField = "component"

// LogLevel is the textual minimum level accepted from configuration.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config selects the global logger's level, encoding and sink.
type Config struct {
	Level LogLevel
	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// ConfigFromEnv applies LOG_LEVEL and LOG_PRETTY over DefaultConfig.
// An unparsable LOG_PRETTY leaves the default in place.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(level)
	}
	if pretty, err := strconv.ParseBool(os.Getenv("LOG_PRETTY")); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup installs a timestamped logger as zerolog's global logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// parseLevel falls back to info for anything outside debug..error.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(string(level))
	if name == "warning" {
		name = "warn"
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil || parsed < zerolog.DebugLevel || parsed > zerolog.ErrorLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// WithComponent tags base with the component name. Components that accept an
// injected logger use this so tests can pass zerolog.Nop().
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str(ComponentField, component).Logger()
}

// NewLogger derives a component logger from the global logger.
func NewLogger(component string) zerolog.Logger {
	return WithComponent(log.Logger, component)
}
