// Package logger provides structured logging for mayi using log/slog.
//
// Logs always go to stderr (or a caller-supplied writer): stdout carries hook
// decisions and the proxied JSON-RPC stream and must stay clean.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	log   *slog.Logger
	once  sync.Once
	level slog.Level = slog.LevelError
)

// Options configures the logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means error.
	Level string
	// Verbose forces debug level, overriding Level
	Verbose bool
	// Output is the writer for log output (defaults to os.Stderr)
	Output io.Writer
	// JSON enables JSON-formatted output
	JSON bool
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "error":
		return slog.LevelError, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", name)
	}
}

// Init initializes the global logger with the given options.
// Only the first call takes effect. An invalid level is reported and the
// logger falls back to error level.
func Init(opts Options) error {
	var initErr error
	once.Do(func() {
		lvl, err := ParseLevel(opts.Level)
		if err != nil {
			initErr = err
			lvl = slog.LevelError
		}
		if opts.Verbose {
			lvl = slog.LevelDebug
		}
		level = lvl

		output := opts.Output
		if output == nil {
			output = os.Stderr
		}

		handlerOpts := &slog.HandlerOptions{Level: lvl}

		var handler slog.Handler
		if opts.JSON {
			handler = slog.NewJSONHandler(output, handlerOpts)
		} else {
			handler = slog.NewTextHandler(output, handlerOpts)
		}

		log = slog.New(handler).With("app", "mayi")
	})
	return initErr
}

// Reset resets the logger for testing purposes.
func Reset() {
	once = sync.Once{}
	log = nil
	level = slog.LevelError
}

// IsVerbose returns true if debug logging is enabled.
func IsVerbose() bool {
	return level <= slog.LevelDebug
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	if log != nil {
		log.Debug(msg, args...)
	}
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if log != nil {
		log.Info(msg, args...)
	}
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	if log != nil {
		log.Warn(msg, args...)
	}
}

// Error logs at error level.
func Error(msg string, args ...any) {
	if log != nil {
		log.Error(msg, args...)
	}
}

// With returns a logger with additional context attributes.
func With(args ...any) *slog.Logger {
	if log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return log.With(args...)
}
