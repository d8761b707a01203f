package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/catalogbot/core/logger"
	tghelpers "github.com/m3rciful/catalogbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// pruneAt is the tracked-sender count that triggers dropping stale entries.
const pruneAt = 1024

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds ("callback", "message", "inline_query") that bypass the limit.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type throttle struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[int64]time.Time
}

// allow records an update from userID and reports whether it came at least
// one interval after the previous accepted one.
func (t *throttle) allow(userID int64) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if seen, ok := t.last[userID]; ok && now.Sub(seen) < t.interval {
		return false
	}
	if len(t.last) >= pruneAt {
		for id, seen := range t.last {
			if now.Sub(seen) >= t.interval {
				delete(t.last, id)
			}
		}
	}
	t.last[userID] = now
	return true
}

func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	case u.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates that arrive from the same sender less
// than opts.Interval apart. OnLimited runs for every dropped update.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	t := &throttle{interval: opts.Interval, now: time.Now, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip || t.allow(user.ID) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
