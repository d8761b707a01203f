package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes SendText and SendMD through d. With a nil
// dispatcher they send synchronously.
func SetDispatcher(d *sender.Dispatcher) { dispatcher.Store(d) }

// SendText sends text without a parse mode. At most one options value is
// used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var args []any
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", func() error { return c.Send(text, args...) })
}

// SendMD sends legacy Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return deliver(c, "send.markdown", func() error { return c.Send(text, opts) })
}

// deliver queues run on the dispatcher. A full or closed queue falls back
// to sending inline so the reply is not lost.
func deliver(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("status", "skip"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
