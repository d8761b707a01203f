package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

var (
	// ErrInvalidRegistration rejects an empty name, a nil handler, a command
	// without a description or an unknown action type.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicate rejects a second handler for the same command or action.
	ErrDuplicate = errors.New("telegram: already registered")
)

// Registry holds bot commands and the callback handlers keyed by action
// type. Registration happens before the bot starts; lookups may run
// concurrently with it.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	actions          map[callbacks.Type]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry whose unknown-callback fallback
// answers with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		actions:  make(map[callbacks.Type]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds a slash command. name must start with "/".
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || strings.TrimSpace(cmd.Description) == "":
		return r.reject("register.command.skip", name, ErrInvalidRegistration, "invalid")
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return r.reject("register.command.skip", name, ErrInvalidRegistration, "no_slash_prefix")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return r.reject("register.command.duplicate", name, ErrDuplicate, "duplicate")
	}
	r.commands[name] = cmd
	return nil
}

// RegisterAction binds a handler to a callback action type. The decoded
// action is available to the handler through callbacks.From.
func (r *Registry) RegisterAction(t callbacks.Type, handler tele.HandlerFunc) error {
	if handler == nil || !callbacks.Known(t) {
		return r.reject("register.callback.skip", string(t), ErrInvalidRegistration, "invalid")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.actions[t]; dup {
		return r.reject("register.callback.duplicate", string(t), ErrDuplicate, "duplicate")
	}
	r.actions[t] = handler
	return nil
}

func (r *Registry) reject(event, name string, kind error, reason string) error {
	logger.Warn(context.Background(), wireComponent, event,
		slog.String("status", "skip"),
		slog.String("name", name),
		slog.String("reason", reason),
	)
	return fmt.Errorf("%w: %s (%s)", kind, name, reason)
}

// ListCommands returns the commands sorted by name. visibleOnly drops
// hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves name, with or without the leading slash, or one of
// the aliases to the registered command key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// Action returns the handler bound to t.
func (r *Registry) Action(t callbacks.Type) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.actions[t]
	return h, ok
}

// ListActions returns the bound action types, sorted.
func (r *Registry) ListActions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for t := range r.actions {
		names = append(names, string(t))
	}
	slices.Sort(names)
	return names
}

// SetCallbackNotFound replaces the handler for tokens that do not decode or
// have no bound action. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackNotFound = h
}

// CallbackNotFound returns the unknown-callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matches no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFallback = h
}

// TextFallback returns the text fallback handler, possibly nil.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands to the Telegram menu.
func InitBotCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	visible := reg.ListCommands(true)
	if err := bot.SetCommands(visible); err != nil {
		logger.Error(ctx, wireComponent, "register.commands.set",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, wireComponent, "register.commands.set",
		slog.String("status", "ok"),
		slog.Int("commands", len(visible)),
	)
}
