package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line.
const ServiceName = "storefront"

// NewLogger creates a new logger based on the configuration, writing to stdout.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).With().
		Timestamp().
		Str("app", ServiceName).
		Logger()
}
