// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options mirrors the LOG_* settings.
type Options struct {
	Level  string
	Format string // "json" or "text"
	File   string
}

// New installs a logger on stderr, teeing into Options.File when set, and
// makes it the slog default; the gateway backends log through slog
// directly. The returned func closes the file.
func New(opts Options) (*slog.Logger, func(), error) {
	return build(os.Stderr, opts)
}

func build(console io.Writer, opts Options) (*slog.Logger, func(), error) {
	out := console
	closeFile := func() {}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(console, f)
		closeFile = func() { _ = f.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler).With("service", "plantid")
	slog.SetDefault(logger)
	return logger, closeFile, nil
}

// ParseLevel accepts slog level names in any case, including offsets such
// as "debug+2". Anything else is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
