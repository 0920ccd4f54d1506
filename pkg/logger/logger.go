// Package logger builds the *slog.Logger used across the viewer. Records are
// rendered by zerolog and can be fanned out to several sinks.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// Opts configures New.
type Opts struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string

	// Writers receive every record at or above Level.
	Writers []io.Writer

	// Console renders human readable lines instead of JSON.
	Console bool
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to every writer in opts. With no writers the
// logger discards everything.
func New(opts Opts) *slog.Logger {
	if len(opts.Writers) == 0 {
		return Discard()
	}

	level := ParseLevel(opts.Level)
	handlers := make([]slog.Handler, 0, len(opts.Writers))
	for _, w := range opts.Writers {
		if opts.Console {
			w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
		}
		zl := zerolog.New(w).With().Timestamp().Logger()
		handlers = append(handlers, slogzerolog.Option{Level: level, Logger: &zl}.NewZerologHandler())
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// OpenFile creates (or appends to) the log file at path, making parent
// directories as needed.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
