package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(format logFormat, sinks ...sink) (*slog.Logger, *asyncWriter) {
	aw := newAsyncWriter(sinks...)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	return slog.New(h), aw
}

func logEvent(l *slog.Logger, ctx context.Context, level slog.Level, component, event string, attrs ...slog.Attr) {
	all := append([]slog.Attr{slog.String("component", component), slog.String("event", event)}, attrs...)
	l.LogAttrs(ctx, level, event, all...)
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	l, aw := newTestLogger(formatKV, newSink(buf, slog.LevelDebug, 1024))
	ctx := WithMeta(context.Background(), Meta{RID: "rid-123", UpdateID: 42, ChatID: 7, UserID: 9})

	logEvent(l, ctx, slog.LevelInfo, "catalog", "catalog.open",
		slog.String("cause", "unit"),
		slog.String("status", "OK"),
	)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	tokens := strings.Fields(buf.String())
	want := []string{"ts=", "level=INFO", "component=catalog", "event=catalog.open", "status=ok", "rid=rid-123", "update_id=42", "user_id=9", "chat_id=7"}
	if len(tokens) < len(want) {
		t.Fatalf("tokens = %v", tokens)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %q, want prefix %q", i, tokens[i], prefix)
		}
	}
	if last := tokens[len(tokens)-1]; last != "cause=unit" {
		t.Fatalf("last token = %q", last)
	}
}

func TestStructuredHandlerJSONFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l, aw := newTestLogger(formatJSON, newSink(buf, slog.LevelDebug, 1024))
	ctx := WithMeta(context.Background(), Meta{UpdateID: 42, ChatID: 7, UserID: 9})

	logEvent(l, ctx, slog.LevelWarn, "inquiry", "inquiry.persist",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("outcome", "maybe"),
		slog.String("empty", ""),
	)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["level"] != "WARN" || got["component"] != "inquiry" || got["event"] != "inquiry.persist" {
		t.Fatalf("header fields = %v", got)
	}
	if got["rid"] != "16.7.9" || got["rid_full"] != "42:7:9" {
		t.Fatalf("rid = %v, rid_full = %v", got["rid"], got["rid_full"])
	}
	if got["duration_ms"] != float64(2) {
		t.Fatalf("duration_ms = %v", got["duration_ms"])
	}
	for _, k := range []string{"outcome", "empty", "duration"} {
		if _, ok := got[k]; ok {
			t.Fatalf("key %q should be dropped: %v", k, got)
		}
	}
	if !strings.HasPrefix(buf.String(), `{"ts":`) {
		t.Fatalf("line should start with ts: %s", buf.String())
	}
}

func TestStructuredHandlerGroupsAndDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	l, aw := newTestLogger(formatKV, newSink(buf, slog.LevelDebug, 1024))

	l.WithGroup("media").Info("resolved", slog.Int("count", 3))
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"component=app", "event=resolved", "media.count=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestAsyncWriterRoutesByLevel(t *testing.T) {
	all, errs := &bytes.Buffer{}, &bytes.Buffer{}
	l, aw := newTestLogger(formatKV,
		newSink(all, slog.LevelDebug, 1024),
		newSink(errs, slog.LevelWarn, 1024),
	)
	ctx := context.Background()

	logEvent(l, ctx, slog.LevelDebug, "app", "one")
	logEvent(l, ctx, slog.LevelInfo, "app", "two")
	logEvent(l, ctx, slog.LevelWarn, "app", "three")
	logEvent(l, ctx, slog.LevelError, "app", "four")
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if n := strings.Count(all.String(), "\n"); n != 4 {
		t.Fatalf("main sink lines = %d, want 4", n)
	}
	if n := strings.Count(errs.String(), "\n"); n != 2 {
		t.Fatalf("errors sink lines = %d, want 2:\n%s", n, errs.String())
	}
	if strings.Contains(errs.String(), "event=two") {
		t.Fatalf("info line leaked into errors sink")
	}
}

func TestAsyncWriterRejectsAfterClose(t *testing.T) {
	aw := newAsyncWriter(newSink(&bytes.Buffer{}, slog.LevelDebug, 16))
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Write(slog.LevelInfo, []byte("late\n")); err == nil {
		t.Fatalf("write after close should fail")
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"42:7:9":   "16.7.9",
		" 0:0:0 ":  "0.0.0",
		"1:-100:2": "1.-2s.2",
		"rid-123":  "rid-123",
		"1:2":      "1:2",
		"a:b:c":    "a:b:c",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Fatalf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 10); got != "abc\td" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("привет", 3); got != "при" {
		t.Fatalf("SanitizeLimit runes = %q", got)
	}
	if got := SanitizeLimit("x", 0); got != "" {
		t.Fatalf("SanitizeLimit zero = %q", got)
	}
}

func TestParseRatio(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"1/10", 1, 10},
		{" 3 / 4 ", 3, 4},
		{"50", 1, 50},
		{"0", 0, 0},
		{"x/2", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatio(tc.in)
		if num != tc.num || den != tc.den {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", tc.in, num, den, tc.num, tc.den)
		}
	}
}

func TestRatioSampler(t *testing.T) {
	var s ratioSampler
	if !s.Allow() {
		t.Fatalf("zero sampler should allow")
	}
	s.Set(1, 4)
	allowed := 0
	for i := 0; i < 40; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("allowed = %d, want 10", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatalf("reset sampler should allow")
	}
}

func TestMetaWithHandler(t *testing.T) {
	ctx := WithMeta(context.Background(), Meta{UpdateID: 1, ChatID: 2, UserID: 3})
	ctx = WithHandler(ctx, "item_open")
	m := MetaFrom(ctx)
	if m.Handler != "item_open" || m.RID != "1:2:3" {
		t.Fatalf("meta = %+v", m)
	}
	if got := MetaFrom(context.Background()); got != (Meta{}) {
		t.Fatalf("empty ctx meta = %+v", got)
	}
}
