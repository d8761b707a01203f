package helpers

import (
	"context"

	"github.com/m3rciful/catalogbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

// BuildContext returns the logging context of the update behind c. The
// first call derives it from the update and caches it on c.
func BuildContext(c tele.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}
	meta := logger.Meta{UpdateID: c.Update().ID}
	if s := c.Sender(); s != nil {
		meta.UserID = s.ID
	}
	if ch := c.Chat(); ch != nil {
		meta.ChatID = ch.ID
	}
	ctx := logger.WithMeta(context.Background(), meta)
	c.Set(contextKey, ctx)
	return ctx
}

// WithHandler adds the handler name to the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	if c != nil {
		c.Set(contextKey, ctx)
	}
	return ctx
}
