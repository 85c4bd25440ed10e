// Package logging provides structured logging configuration for jobconsole.
//
// Logging Strategy:
//   - The sync agent logs JSON to stdout (journald compatible) with source locations
//   - One-shot CLI commands log human-readable text to stderr so stdout stays
//     reserved for command output (cron strings, previews, tables)
//   - Log levels configurable via config file or --log-level (debug, info, warn, error)
//
// Usage:
//
//	logger := logging.SetupLogger("info")
//	logger.Info("jobs refreshed", "count", n, "component", "poller")
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SetupLogger creates the JSON logger used by the agent and sets it as the
// slog default. The level parameter accepts "debug", "info", "warn", "error"
// (case-insensitive); anything else means "info".
func SetupLogger(level string) *slog.Logger {
	return setDefault(NewJSONLogger(os.Stdout, level))
}

// SetupCLILogger creates a text logger writing to w (normally os.Stderr) and
// sets it as the slog default.
func SetupCLILogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return setDefault(slog.New(handler))
}

// NewJSONLogger builds a JSON logger with shortened source locations without
// touching the slog default.
func NewJSONLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		AddSource:   true,
		ReplaceAttr: shortenSource,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func setDefault(logger *slog.Logger) *slog.Logger {
	slog.SetDefault(logger)
	return logger
}

// shortenSource trims file and function names to start at internal/ or cmd/.
func shortenSource(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	source, ok := a.Value.Any().(*slog.Source)
	if !ok {
		return a
	}
	source.File = trimToModule(source.File, true)
	source.Function = trimToModule(source.Function, false)
	return a
}

func trimToModule(s string, baseFallback bool) string {
	for _, marker := range []string{"internal/", "cmd/"} {
		if idx := strings.Index(s, marker); idx != -1 {
			return s[idx:]
		}
	}
	if baseFallback {
		return filepath.Base(s)
	}
	return s
}

// ParseLevel converts a string log level to slog.Level.
// Accepts: "debug", "info", "warn", "warning", "error" (case-insensitive).
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger with a pre-set component attribute.
//
// Usage:
//
//	pollerLog := logging.WithComponent(logger, "poller")
//	pollerLog.Info("polling started") // includes "component": "poller"
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
