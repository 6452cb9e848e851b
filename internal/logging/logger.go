// Package logging builds the zerolog loggers used by the CLI and engine.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a logger writing to w (stderr when nil) at the given
// level. format "json" emits one JSON object per line; anything else uses
// the human-readable console writer. Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "secops").
		Logger()
}

// Nop returns a disabled logger for tests and library callers that do not
// care about diagnostics.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
