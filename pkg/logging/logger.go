// Package logging configures the global zerolog logger and hands out
// component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names used across the module.
const (
	ComponentClient    = "client"
	ComponentPager     = "pager"
	ComponentFetcher   = "fetcher"
	ComponentPageFetch = "pagefetch"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Unknown levels fall back to
// info and are reported once through the new logger.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level, levelErr := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	if levelErr != nil {
		logger.Warn().Err(levelErr).Msg("Falling back to info level")
	}
	return logger
}

// ParseLevel converts a level name to a zerolog level. "warning" is accepted
// as an alias for warn; an empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger creates a logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: page and request flow
//   - Page requests and received pages (page, per_page, current_page, last_page)
//   - Cache operations (conditional requests, ETags, TTL)
//   - Rejected pager requests
//
// Info: completed work
//   - Exhaustive fetches (pages, items, duration)
//   - Requests that succeeded after retry
//
// Warn: degraded but continuing
//   - Failed page fetches
//   - Rate limit throttling
//   - Retry attempts exhausted
//   - Cache errors (request goes to the network)
//
// Error: needs attention
//   - Critical rate limit blocks
//   - Failed requests without a response
//
// Context Fields:
//   - component: client, pager, fetcher, pagefetch
//   - endpoint: request path
//   - operation: refresh, update, fetch_all
//   - page, per_page, current_page, last_page: pagination cursor
//   - status, error_class: HTTP failure classification
//   - etag, ttl: cache validators and lifetime
