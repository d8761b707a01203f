package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/catalogbot/core/logger"
	tghelpers "github.com/m3rciful/catalogbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Router dispatches text updates to the handler bound to the sender's state.
type Router struct {
	store Store

	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewRouter binds a Router to the given store.
func NewRouter(store Store) *Router {
	return &Router{store: store, handlers: make(map[State]tele.HandlerFunc)}
}

// Handle associates a state with its handler. Nil handlers are ignored.
func (r *Router) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[st] = h
}

// Store exposes the backing session store.
func (r *Router) Store() Store { return r.store }

// Active reports whether the user has an active conversation.
func (r *Router) Active(userID int64) bool {
	return r.store.InProgress(userID)
}

// Dispatch runs the handler registered for the sender's current state.
// Updates arriving in a state without a handler are dropped.
func (r *Router) Dispatch(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	current := r.store.GetState(sender.ID)

	r.mu.RLock()
	handler, ok := r.handlers[current]
	r.mu.RUnlock()

	ctx := tghelpers.BuildContext(c)
	status := "ok"
	if !ok {
		status = "skip"
	}
	logger.Debug(ctx, "tg", "fsm.dispatch",
		slog.String("status", status),
		slog.Int64("user_id", sender.ID),
		slog.String("state", string(current)),
	)
	if !ok {
		return nil
	}
	return handler(c)
}
