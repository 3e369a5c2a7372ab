package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hal9000y/mail-assistant/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}

	for in, want := range cases {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestNewRedactsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "info", false)

	log.Debug().Msg("hidden")
	log.Info().Str("header", "Bearer abc.def-123").Msg("calling issuer")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "abc.def-123")
	assert.Contains(t, out, "Bearer ***")
	assert.Contains(t, out, "calling issuer")
}
