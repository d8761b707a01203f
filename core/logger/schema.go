package logger

import (
	"log/slog"
	"strings"
)

// outcomes lists the accepted outcome values; others are dropped.
var outcomes = map[string]bool{"ok": true, "fail": true, "cancelled": true}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func normalizeEnums(fields map[string]any) {
	if s, ok := fields["status"].(string); ok && s != "" {
		fields["status"] = strings.ToLower(s)
	}
	if o, ok := fields["outcome"].(string); ok && o != "" {
		o = strings.ToLower(o)
		if outcomes[o] {
			fields["outcome"] = o
		} else {
			delete(fields, "outcome")
		}
	}
}

// defaultKeyOrder puts correlation fields first and the catalog ids next to
// them; remaining keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"kind",
	"state",
	"category_id",
	"item_id",
	"inquiry_id",
	"media_id",
	"subject",
	"count",
	"resolved",
	"requested",
	"payload",
	"mode",
	"listen",
	"public_url",
	"driver",
	"db",
	"host",
	"port",
	"action",
	"endpoint",
	"attempt",
	"attempts",
	"err",
	"err_code",
	"error_kind",
	"cause",
}
