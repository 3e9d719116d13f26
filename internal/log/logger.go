package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"tablet-sync-backend/config"
)

// New builds the service logger. Production defaults to JSON output.
func New(environment string, cfg config.LoggingConfig) zerolog.Logger {
	return NewWithWriter(os.Stdout, environment, cfg)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(out io.Writer, environment string, cfg config.LoggingConfig) zerolog.Logger {
	format := cfg.Format
	if format == "" {
		format = "console"
		if environment == "production" {
			format = "json"
		}
	}

	var w io.Writer = out
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    environment == "production",
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
		if environment != "production" {
			level = zerolog.DebugLevel
		}
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("env", environment).
		Logger()
}
