package middleware

import (
	"log/slog"

	"github.com/m3rciful/catalogbot/core/logger"
	tghelpers "github.com/m3rciful/catalogbot/core/telegram/helpers"
	"github.com/m3rciful/catalogbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// StateGetter is the minimal interface required from an FSM store.
type StateGetter interface {
	GetState(userID int64) state.State
}

// StateOptions customises State. OnSkip runs when the user is in another state.
type StateOptions struct {
	OnSkip tele.HandlerFunc
}

// State returns a middleware that only lets updates through when the sender
// is in one of the expected FSM states.
func State(mgr StateGetter, expected []state.State, opts ...StateOptions) tele.MiddlewareFunc {
	var opt StateOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || mgr == nil {
				return nil
			}
			current := mgr.GetState(sender.ID)
			ctx := tghelpers.BuildContext(c)
			for _, want := range expected {
				if current == want {
					logger.Debug(ctx, "tg", "fsm.match",
						slog.Int64("user_id", sender.ID),
						slog.String("state", string(current)),
					)
					return next(c)
				}
			}
			logger.Debug(ctx, "tg", "fsm.skip",
				slog.String("status", "skip"),
				slog.Int64("user_id", sender.ID),
				slog.String("state", string(current)),
			)
			if opt.OnSkip != nil {
				return opt.OnSkip(c)
			}
			return nil
		}
	}
}
