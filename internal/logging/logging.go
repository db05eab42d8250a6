// Package logging wires slog to a zerolog console writer for the example
// programs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// New returns a slog logger that renders through a zerolog console writer
// on w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	return slog.New(zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}))
}

// Install makes a stderr console logger at level the slog default and
// returns it.
func Install(level slog.Level) *slog.Logger {
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}
