package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catalogbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids so an update passing
// through several wrapped handlers is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	at   map[int]time.Time
	keep time.Duration
}

var receipts = &seenUpdates{at: make(map[int]time.Time), keep: 10 * time.Second}

func (s *seenUpdates) first(id int) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.at {
		if now.Sub(t) > s.keep {
			delete(s.at, k)
		}
	}
	if _, ok := s.at[id]; ok {
		return false
	}
	s.at[id] = now
	return true
}

// LoggerMiddleware prepares the update's logging context and writes a
// sampled update.received line. Message text is logged by length only since
// inquiry steps carry names and phone numbers.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if !logger.ShouldSampleDebug() || !receipts.first(c.Update().ID) {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
		upd := c.Update()
		switch {
		case upd.Callback != nil:
			token := callbacks.Token(c)
			key := "unknown"
			if a, ok := callbacks.Read(token); ok {
				key = string(a.Type)
			}
			attrs = append(attrs,
				slog.String("cb_key", key),
				slog.String("payload", logger.SanitizeLimit(token, 64)),
			)
		case upd.Message != nil:
			text := c.Text()
			attrs = append(attrs, slog.Int("text_len", utf8.RuneCountInString(text)))
			if strings.HasPrefix(text, "/") {
				cmd, _, _ := strings.Cut(text, " ")
				attrs = append(attrs, slog.String("command", logger.SanitizeLimit(cmd, 32)))
			}
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
