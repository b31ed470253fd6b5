package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/config"
)

// buildLogger assembles the process logger from the logging configuration:
// output destination, console formatting, caller info, and component filter.
func buildLogger(cfg config.Logging) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			errLogger := zerolog.New(os.Stderr)
			errLogger.Error().Err(err).Str("path", cfg.Path).Msg("cannot open log file, falling back to stdout")
		} else {
			out = f
		}
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out}
	}
	if len(cfg.Filter.Whitelist) > 0 || len(cfg.Filter.Blacklist) > 0 {
		out = newComponentFilter(out, cfg.Filter)
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Extended {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	if level, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		logger = logger.Level(level)
	}
	return logger
}

// componentFilter drops log lines by their "component" field before they
// reach the sink. Lines without a component always pass.
type componentFilter struct {
	next      io.Writer
	whitelist map[string]bool
	blacklist map[string]bool
}

func newComponentFilter(next io.Writer, f config.LogFilter) *componentFilter {
	cf := &componentFilter{
		next:      next,
		whitelist: make(map[string]bool, len(f.Whitelist)),
		blacklist: make(map[string]bool, len(f.Blacklist)),
	}
	for _, name := range f.Whitelist {
		cf.whitelist[name] = true
	}
	for _, name := range f.Blacklist {
		cf.blacklist[name] = true
	}
	return cf
}

func (f *componentFilter) Write(p []byte) (int, error) {
	var entry struct {
		Component string `json:"component"`
	}
	if err := json.Unmarshal(p, &entry); err == nil && entry.Component != "" {
		if len(f.whitelist) > 0 && !f.whitelist[entry.Component] {
			return len(p), nil
		}
		if f.blacklist[entry.Component] {
			return len(p), nil
		}
	}
	return f.next.Write(p)
}
