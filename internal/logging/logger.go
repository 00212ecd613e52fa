// Package logging builds the zerolog logger shared by the CLI and engine.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level  string            // zerolog level name; defaults to info
	Pretty bool              // human-readable console output instead of JSON
	Fields map[string]string // static context fields added to every line
}

// New creates a structured logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(w).With().Timestamp()
	for k, v := range opts.Fields {
		if v != "" {
			ctx = ctx.Str(k, v)
		}
	}
	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}

// NewStderr creates a logger on stderr, pretty-printed when stderr is a terminal.
func NewStderr(level string) zerolog.Logger {
	return New(os.Stderr, Options{
		Level:  level,
		Pretty: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	})
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
