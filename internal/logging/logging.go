// Package logging builds the shared zerolog logger used across the
// indexer's packages. There is no global logger; callers receive a
// logger via constructor injection and pass it down.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly logger writing to w (os.Stderr when w is
// nil). debug raises the level to debug instead of info.
func New(w io.Writer, debug bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
