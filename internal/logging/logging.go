// Package logging builds the process logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hal9000y/mail-assistant/internal/auth"
)

// New returns a logger writing to w at level, with credentials redacted.
// console selects human-readable output instead of JSON.
func New(w io.Writer, level string, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(auth.RedactingWriter{W: w}).
		Level(ParseLevel(level)).
		With().Timestamp().
		Logger()
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
