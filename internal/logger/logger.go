// Package logger builds the process logger. Components receive the
// zerolog.Logger by value and add their own "component" field.
package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects level and format.
type Options struct {
	Level  string
	Format string
	// NoTimestamp drops timestamps from console output; journald adds its own.
	NoTimestamp bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var out io.Writer
	switch opts.Format {
	case "", FormatConsole:
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
		if opts.NoTimestamp {
			cw.FormatTimestamp = func(interface{}) string { return "" }
		}
		out = cw
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want %q or %q", opts.Format, FormatConsole, FormatJSON)
	}

	ctx := zerolog.New(out).Level(level).With()
	if !opts.NoTimestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger(), nil
}
