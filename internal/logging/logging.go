// Package logging configures the process-wide zerolog logger. As PID 1,
// alfad's default output target is whatever file descriptor 2 is wired to
// at boot (typically the kernel console or a serial port); a console-
// formatted writer is used only when that turns out to be a terminal,
// matching the level/field conventions the rest of the tree logs with.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Level is one of "trace", "debug", "info", "warn", "error", or empty
	// (defaults to "info").
	Level string
	// Writer overrides the destination; nil means os.Stderr.
	Writer io.Writer
}

// New builds the root logger every package derives its own `.With()`
// sub-logger from.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Stamp}
	}

	level := parseLevel(opts.Level)
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
