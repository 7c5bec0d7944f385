package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the CLI's console logger. Unknown or empty levels fall
// back to info rather than failing the command.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
