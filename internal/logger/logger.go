// Package logger provides a configured zerolog logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a new zerolog.Logger writing structured logs to stderr.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stderr).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
