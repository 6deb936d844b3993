// Package observability builds the process-wide zerolog logger.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger returns a console logger tagged with app and installs it as the
// global logger. Unknown levels fall back to info.
func InitLogger(app string, level string) zerolog.Logger {
	logger := NewLogger(os.Stdout, app, level)
	log.Logger = logger
	return logger
}

// NewLogger builds the same logger over out without touching the global.
func NewLogger(out io.Writer, app string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
}
