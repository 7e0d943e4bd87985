// Package logger configures the process-wide zerolog root logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger.
type Options struct {
	// Level is the minimum level to emit: trace, debug, info, warn, error.
	Level string
	// Format selects the output encoding: "console" or "json".
	Format string
	// Writer overrides the output destination. Defaults to stderr.
	Writer io.Writer
}

// FromEnv builds Options from YARK_LOG_* environment variables.
func FromEnv() Options {
	return Options{
		Level:  strings.ToLower(os.Getenv("YARK_LOG_LEVEL")),
		Format: strings.ToLower(os.Getenv("YARK_LOG_FORMAT")),
	}
}

// New builds a root logger from the given options.
func New(opt Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Use in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(s string) zerolog.Level {
	switch strings.TrimSpace(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
