package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns the process logger. Development output goes through a
// ConsoleWriter, everything else is JSON on w (stdout when nil).
func New(w io.Writer, env, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "dev" || env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
