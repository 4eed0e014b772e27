package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedAttrs never reach the log output with their value.
var redactedAttrs = map[string]bool{
	"key_challenge": true,
	"challenge":     true,
	"k":             true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedAttrs[a.Key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// setupLogger writes to w, normally stderr, so stdout carries only command output.
// Unknown levels fall back to info.
func setupLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl == slog.LevelDebug,
		ReplaceAttr: redact,
	}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(
		slog.String("service", appName),
		slog.String("version", Version),
		slog.Int("pid", os.Getpid()),
	)
}
