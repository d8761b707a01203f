package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/catalogbot/core/logger"
	tg "github.com/m3rciful/catalogbot/core/telegram"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions configures CallbackRoute. NotFound is used when the
// registry has no unknown-callback handler.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute binds tele.OnCallback. Tokens are decoded with the action
// codec; a token that decodes to a bound type is acknowledged before its
// handler runs. Anything else goes to the not-found handler.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		token := callbacks.Token(c)
		action, decoded := callbacks.Read(token)

		var h tele.HandlerFunc
		key := "unknown"
		if decoded {
			key = string(action.Type)
			h, _ = reg.Action(action.Type)
		}
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		if h == nil {
			reason := "not_found"
			if !decoded {
				reason = "decode_miss"
				extras = append(extras, slog.String("payload", logger.SanitizeLimit(token, 64)))
			}
			extras = append(extras, slog.String("reason", reason))
			return handleWithSummary(c, name, start, "skip", "", func() error {
				return notFound(c, reg, opts)
			}, extras...)
		}

		_ = c.Respond()
		callbacks.Store(c, action)
		return handleWithSummary(c, name, start, "", "", func() error { return h(c) }, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func notFound(c tele.Context, reg *tg.Registry, opts CallbackOptions) error {
	if h := reg.CallbackNotFound(); h != nil {
		return h(c)
	}
	if opts.NotFound != nil {
		return opts.NotFound(c)
	}
	return c.Respond()
}
