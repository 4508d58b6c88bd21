// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the global logger instance. It is usable before Init and
// writes to stderr at info level until then.
var Logger = New(os.Stderr, log.InfoLevel)

// Init configures the global logger. NEWSWIRE_DEBUG=true enables debug
// output.
func Init() {
	level := log.InfoLevel
	if os.Getenv("NEWSWIRE_DEBUG") == "true" {
		level = log.DebugLevel
	}
	Logger = New(os.Stderr, level)
}

// New creates a logger writing logfmt-style lines to w.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Prefix:          "newswire",
	})
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return New(io.Discard, log.FatalLevel)
}
