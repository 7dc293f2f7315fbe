package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New builds a logger tagged with the service name. Text output drops the
// sub-second part of timestamps for terminal readability.
func New(service, level string, format Format, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == FormatText {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
			}
			return a
		}
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

// NewJSONLogger is the intake service logger. It writes to stdout.
func NewJSONLogger(service, level string) *slog.Logger {
	return New(service, level, FormatJSON, os.Stdout)
}

// NewTextLogger is used by the command-line tools, which keep stdout for
// their own output.
func NewTextLogger(service, level string, w io.Writer) *slog.Logger {
	return New(service, level, FormatText, w)
}

func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
