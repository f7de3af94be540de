package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	out  io.Writer
	json bool
}

// Option customizes New.
type Option func(*options)

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON disables the console writer.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// New builds a zerolog logger with the given level string (debug, info, warn, error).
func New(level string, opts ...Option) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var output io.Writer = o.out
	if !o.json {
		output = zerolog.ConsoleWriter{
			Out:        o.out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
