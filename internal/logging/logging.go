// Package logging installs the process-wide go-ethereum logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// ParseLevel accepts trace, debug, info, warn, error and crit.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return log.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// NewHandler builds a terminal, logfmt or json handler writing to w.
func NewHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	switch format {
	case "", "terminal":
		useColor := false
		if f, ok := w.(*os.File); ok {
			useColor = isatty.IsTerminal(f.Fd())
		}
		return log.NewTerminalHandlerWithLevel(w, level, useColor), nil
	case "logfmt":
		return log.LogfmtHandlerWithLevel(w, level), nil
	case "json":
		return log.JSONHandlerWithLevel(w, level), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// Setup replaces the root logger. Unknown values fall back to info/terminal and
// are reported through the returned error.
func Setup(level, format string) error {
	lvl, levelErr := ParseLevel(level)
	h, formatErr := NewHandler(os.Stderr, lvl, format)
	if formatErr != nil {
		h, _ = NewHandler(os.Stderr, lvl, "terminal")
	}
	log.SetDefault(log.NewLogger(h))
	if levelErr != nil {
		return levelErr
	}
	return formatErr
}
