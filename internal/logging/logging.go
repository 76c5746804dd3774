// Package logging wires the process-wide zerolog logger the way
// cmd/cryptorun/main.go does: a human-friendly console writer on a TTY,
// plain JSON lines otherwise, with a per-component child logger for every
// subsystem instead of a module-level global.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Init configures zerolog's global time format and returns a root logger
// that writes to out (or os.Stderr if out is nil). The Supervisor owns this
// logger and hands child loggers to every other component; no package here
// keeps a log.Logger global of its own.
func Init(out io.Writer, logFilePath string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer = out
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		writer = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}

	if logFilePath != "" {
		if f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			writer = zerolog.MultiLevelWriter(writer, f)
		}
	}

	return zerolog.New(writer).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name.
func Component(root zerolog.Logger, name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
