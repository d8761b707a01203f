package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Token returns the raw callback data carried by the update. Keyboards from
// the keyboard package never set a telebot unique; data of the
// \f<unique>|<payload> shape is flattened to "<unique>|<payload>".
func Token(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	if cb.Unique != "" {
		if raw == "" {
			return cb.Unique
		}
		return cb.Unique + "|" + raw
	}
	return raw
}

const contextKey = "cb_action"

// Store keeps the decoded action on the update context for downstream handlers.
func Store(c tele.Context, a Action) {
	c.Set(contextKey, a)
}

// From returns the action stored by the callback router.
func From(c tele.Context) (Action, bool) {
	a, ok := c.Get(contextKey).(Action)
	return a, ok
}
