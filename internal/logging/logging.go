// Package logging builds the root zerolog logger.
//
// Logs always go to stderr: stdout carries the MCP protocol and the scan
// command's event stream.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Level is a zerolog level name. Empty or unknown means info.
	Level string

	// Pretty selects the human-readable console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger with a timestamp on every entry.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
