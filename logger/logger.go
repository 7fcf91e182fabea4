// Package logger provides the configurable logger shared by couplex components.
//
// The default logger writes through a github.com/rs/zerolog console writer.
// Its level can be set with the COUPLEX_LOG environment variable
// (trace, debug, info, warn, error or off).
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/couplex/couplex/debug"
)

var logger zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger = zerolog.New(output).With().Timestamp().Logger()

	if lvl := os.Getenv("COUPLEX_LOG"); lvl != "" {
		if lvl == "off" {
			logger = zerolog.Nop()
		} else if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			logger = logger.Level(parsed)
		}
	}

	if !debug.Debug && strings.HasSuffix(os.Args[0], ".test") {
		logger = zerolog.Nop()
	}
}

// SetOutput changes the output of the global logger.
func SetOutput(w io.Writer) {
	logger = logger.Output(w)
}

// Set allows a couplex user to override the global logger.
func Set(l zerolog.Logger) {
	logger = l
}

// Disable disables logging.
func Disable() {
	logger = zerolog.Nop()
}

// Logger returns the global logger; components derive sub-loggers from it
// with zerolog's With().
func Logger() zerolog.Logger {
	return logger
}
