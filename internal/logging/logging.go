// Package logging configures the zerolog logger shared by all components.
// Diagnostics go to stderr; command results are printed to stdout by the
// cmd layer instead.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to stderr. Verbose lowers the level
// to debug so per-step process output becomes visible.
func New(verbose bool) zerolog.Logger {
	return NewWithOutput(verbose, os.Stderr)
}

// NewWithOutput is New with an explicit writer, used by tests to capture output.
func NewWithOutput(verbose bool, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
