package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, true},
		{" warn ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tc := range tests {
		got, ok := ParseLevel(tc.raw)
		require.Equal(t, tc.ok, ok, tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}
}

func TestNewHonoursEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "false")

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &buf
	logger := New("tapsim", opts)

	logger.Info().Msg("hidden")
	logger.Error().Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
	require.Contains(t, out, "app=tapsim")
}
