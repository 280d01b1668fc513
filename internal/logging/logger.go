// Package logging configures the zerolog loggers used by the daemon
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/librescoot/tempfsm"
)

// Config captures options for building the base logger
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Console bool      // human readable output instead of JSON
	Service string    // optional service name attached to every log entry
}

// New builds a base logger. An empty or unparsable level falls back to
// LOG_LEVEL, then to info.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	for _, candidate := range []string{cfg.Level, os.Getenv("LOG_LEVEL")} {
		if candidate == "" {
			continue
		}
		if parsed, err := zerolog.ParseLevel(candidate); err == nil {
			level = parsed
			break
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = "alarmd"
	}

	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// WithComponent returns a child logger annotated with the given component name
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Transitions returns an observer that logs every transition at info level
func Transitions(l zerolog.Logger) tempfsm.Observer {
	return func(c tempfsm.Change) {
		l.Info().
			Str("machine", c.Machine).
			Str("from", string(c.From)).
			Str("command", string(c.Command)).
			Str("to", string(c.To)).
			Bool("auto", c.Auto).
			Bool("reentry", c.Reentry).
			Msg("transitioned")
	}
}
