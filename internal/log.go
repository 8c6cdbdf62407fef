package internal

import (
	"context"
	"log/slog"
)

// LogAttrs forwards to log.LogAttrs with a background context, giving
// every package's logger wrapper a single place to change that context
// plumbing later without touching call sites.
func LogAttrs(log *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if log == nil {
		log = slog.Default()
	}
	log.LogAttrs(context.Background(), level, msg, attrs...)
}
