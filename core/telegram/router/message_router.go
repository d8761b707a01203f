package router

import (
	"time"

	tg "github.com/m3rciful/catalogbot/core/telegram"
	"github.com/m3rciful/catalogbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Flow receives text from users who are in the middle of a conversation.
type Flow interface {
	Active(userID int64) bool
	Dispatch(c tele.Context) error
}

// Fallbacks answers updates that match no command, callback or flow step.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// TextRoutes binds tele.OnText and tele.OnDocument. An active flow takes
// precedence over command lookup, so typed text like "menu" during an
// inquiry is treated as an answer.
func TextRoutes(flow Flow, reg *tg.Registry, fb Fallbacks) []tg.Route {
	inFlow := func(c tele.Context) bool {
		return flow != nil && c.Sender() != nil && flow.Active(c.Sender().ID)
	}

	onText := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "flow", start, "", "", func() error { return flow.Dispatch(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error { return cmd.Handler(c) })
			}
			if h := reg.TextFallback(); h != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error { return h(c) })
			}
		}
		return orSkip(c, "unknown_text", start, fallback(fb, Fallbacks.UnknownText))
	}

	onDocument := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "flow_document", start, "", "", func() error { return flow.Dispatch(c) })
		}
		return orSkip(c, "unexpected_document", start, fallback(fb, Fallbacks.UnknownDocument))
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument)},
	}
}

func fallback(fb Fallbacks, pick func(Fallbacks) tele.HandlerFunc) tele.HandlerFunc {
	if fb == nil {
		return nil
	}
	return pick(fb)
}

func orSkip(c tele.Context, name string, start time.Time, h tele.HandlerFunc) error {
	if h == nil {
		logHandlerSummary(c, name, start, "skip", "ok", nil)
		return nil
	}
	return handleWithSummary(c, name, start, "", "", func() error { return h(c) })
}
