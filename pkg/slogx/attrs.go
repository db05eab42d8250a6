package slogx

import (
	"fmt"
	"io"
	"log/slog"
)

// Attribute keys shared by every package that logs channel activity.
const (
	KeyLoggerName = "logger"
	KeyConsumer   = "consumer"
	KeyTopic      = "topic"
	KeyStrategy   = "strategy"
	KeyWorker     = "worker"
)

// Error returns an attribute with the key "error" holding the error message.
// A nil error yields an empty attribute, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// ByteString renders value as a string under key.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer renders value with its String method under key.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags records with the component that emitted them.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Consumer identifies a broadcast consumer or subscription.
func Consumer(id fmt.Stringer) slog.Attr {
	return Stringer(KeyConsumer, id)
}

// Topic names the broker topic or queue a record refers to.
func Topic(name string) slog.Attr {
	return slog.String(KeyTopic, name)
}

// Strategy records the insertion strategy of a queue.
func Strategy(s fmt.Stringer) slog.Attr {
	return Stringer(KeyStrategy, s)
}

// Worker identifies a worker in a pool by index.
func Worker(index int) slog.Attr {
	return slog.Int(KeyWorker, index)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Named returns logger, or slog.Default when logger is nil, tagged with name.
func Named(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(LoggerName(name))
}
