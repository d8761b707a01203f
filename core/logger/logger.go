// Package logger is the structured slog setup shared by every component.
// Records carry a component and an event name, plus update metadata taken
// from the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/catalogbot/core/buildinfo"
	coreconfig "github.com/m3rciful/catalogbot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex

	base     atomic.Pointer[slog.Logger]
	levelVar slog.LevelVar
	writer   *asyncWriter
	closers  []io.Closer

	debugSampler  ratioSampler
	traceOverride bool
)

// InitLogger installs the structured handler as slog's default. Only the
// first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		levelVar.Set(parseLevel(lc.Level))
		debugSampler.Set(debugRatio(lc.DebugSample))
		traceOverride = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

		var sinks []sink
		sinks, closers, err = openSinks(lc)
		if err != nil {
			return
		}
		writer = newAsyncWriter(sinks...)

		l := slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   writer,
			format:   selectFormat(lc),
			keyOrder: keyOrder(lc.KeysOrder),
		}))
		base.Store(l)
		slog.SetDefault(l)

		commit, date := buildinfo.Revision()
		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", commit),
			slog.String("build_time", date),
			slog.String("cfg_profile", profile(lc)),
		)
	})
	return err
}

// Shutdown flushes buffered output and closes the log files.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	if writer != nil {
		errs = append(errs, writer.Close())
		writer = nil
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	closers = nil
	return errors.Join(errs...)
}

// openSinks returns stdout plus the optional bot and errors files under
// the log dir. The errors file only receives WARN and above.
func openSinks(lc coreconfig.LoggingConfig) ([]sink, []io.Closer, error) {
	sinks := []sink{newSink(os.Stdout, slog.LevelDebug, 0)}
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return sinks, nil, nil
	}
	files := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(lc.BotFile), slog.LevelDebug},
		{strings.TrimSpace(lc.ErrorsFile), slog.LevelWarn},
	}
	var closers []io.Closer
	for _, f := range files {
		if f.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, closers, fmt.Errorf("logger: create log dir: %w", err)
		}
		fh, err := os.OpenFile(filepath.Join(dir, f.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closers, fmt.Errorf("logger: open log file: %w", err)
		}
		sinks = append(sinks, newSink(fh, f.min, 0))
		closers = append(closers, fh)
	}
	return sinks, closers, nil
}

func selectFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if p := profile(lc); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func keyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// debugRatio defaults to 1/50 and accepts "0" to log every debug event.
func debugRatio(raw string) (int, int) {
	if strings.TrimSpace(raw) == "" {
		return 1, 50
	}
	return parseRatio(raw)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}

func current() *slog.Logger {
	if l := base.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Event logs event for component at level. Update metadata comes from ctx.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := current()
	if !l.Enabled(ctx, level) {
		return
	}
	component = strings.TrimSpace(component)
	if component == "" {
		component = "app"
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("component", component), slog.String("event", event))
	l.LogAttrs(ctx, level, event, append(all, attrs...)...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
