// Package logger - Opinionated slog construction for the hashart CLI and its packages.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	json    bool
	pretty  bool
	source  bool
	writers []io.Writer
}

// New builds a *slog.Logger. Without options it writes text records at Info
// level to os.Stderr. Pretty output uses the charmbracelet/log handler, JSON
// output uses slog's JSON handler.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer = os.Stderr
	switch len(c.writers) {
	case 0:
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	switch {
	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source}))
	case c.pretty:
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			ReportCaller:    c.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source}))
	}
}

// Nop returns a logger that discards everything. Packages use it when the caller
// supplies no logger.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNop returns l, or Nop when l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
