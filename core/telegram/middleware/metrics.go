package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const replyStatsKey = "reply_stats"

// replyStats counts what a handler sent back for one update.
type replyStats struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

func (s *replyStats) record(opts []any) {
	s.messages.Add(1)
	if withMarkup(opts) {
		s.keyboard.Store(true)
	}
}

func withMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext records successful replies; edits count as replies.
type countingContext struct {
	tele.Context
	stats *replyStats
}

func (c countingContext) count(err error, opts []any) error {
	if err == nil {
		c.stats.record(opts)
	}
	return err
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies sent while handling an update
// so the handler summary can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		stats := &replyStats{}
		c.Set(replyStatsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters returns the reply count and whether any reply carried a
// keyboard. Both are zero outside MessageMetricsMiddleware.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(replyStatsKey).(*replyStats)
	if !ok || stats == nil {
		return 0, false
	}
	return int(stats.messages.Load()), stats.keyboard.Load()
}
