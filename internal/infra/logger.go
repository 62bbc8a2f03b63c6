package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger. Development gets debug output on a
// console writer; level, when it parses, overrides the environment default.
func NewLogger(appEnv, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	logger := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "imagegen").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases zerolog.Logger so packages take *infra.Logger instead of
// importing zerolog for the type alone.
type Logger = zerolog.Logger
