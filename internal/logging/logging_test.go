package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
	assert.True(t, ValidLevel("info"))
	assert.False(t, ValidLevel("verbose"))
}

func TestInitJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	l := Init(Config{Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("dropped")
	component := Component("bayes")
	component.Warn().Str("model", "MovieRating").Msg("cache unavailable")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"component":"bayes"`)
	assert.Contains(t, out, `"model":"MovieRating"`)
	assert.Contains(t, out, `"message":"cache unavailable"`)
}
