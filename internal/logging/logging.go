// Package logging builds the zerolog loggers used across taplink.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "TAPLINK_LOG_LEVEL"
	EnvLogTimestamp = "TAPLINK_LOG_TIMESTAMP"
	EnvLogNoColor   = "TAPLINK_LOG_NOCOLOR"
)

type Options struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

func DefaultOptions() Options {
	return Options{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
		Out:       os.Stderr,
	}
}

// New returns a console logger tagged with app and installs it as the
// global zerolog logger. Environment variables override opts.
func New(app string, opts Options) zerolog.Logger {
	applyEnvOverrides(&opts)
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        opts.Out,
		NoColor:    opts.NoColor,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(output).Level(opts.Level).With()
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// Test returns a debug logger that writes through t.Log.
func Test(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// ParseLevel accepts the usual level names plus a few aliases for "off".
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
