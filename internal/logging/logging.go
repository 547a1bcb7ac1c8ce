// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options selects level and destination
type Options struct {
	Level string
	// File, when set, receives JSON lines instead of the terminal. Used while
	// the TUI owns the screen.
	File string
	// Console renders human friendly lines instead of JSON
	Console bool
	// Writer defaults to os.Stderr
	Writer io.Writer
}

// New returns the logger and a close function for any opened file
func New(opts Options) (zerolog.Logger, func() error, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrapf(err, "log level %q", opts.Level)
		}
		level = l
	}

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	closer := func() error { return nil }

	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "create log directory")
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "open log file")
		}
		out = f
		closer = f.Close
	case opts.Console:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
