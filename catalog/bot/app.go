// Package bot wires the catalog navigator, the inquiry flow and the media
// resolver into the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catalogbot/catalog/inquiry"
	"github.com/m3rciful/catalogbot/catalog/media"
	"github.com/m3rciful/catalogbot/catalog/navigator"
	"github.com/m3rciful/catalogbot/catalog/storage"
	"github.com/m3rciful/catalogbot/core/bootstrap"
	"github.com/m3rciful/catalogbot/core/logger"
	tg "github.com/m3rciful/catalogbot/core/telegram"
	"github.com/m3rciful/catalogbot/core/telegram/router"
	"github.com/m3rciful/catalogbot/core/telegram/sender"
	"github.com/m3rciful/catalogbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// App owns the per-process catalog components.
type App struct {
	cfg   *Config
	db    *sqlx.DB
	repo  *storage.Store
	store state.Store
	nav   *navigator.Navigator
	flow  *inquiry.Controller
	fsm   *state.Router
	reg   *tg.Registry

	// Telegram adapters; their api is bound when the runtime starts.
	channel    *fileChannel
	notifier   *notifier
	deliverer  *Deliverer
	dispatcher *sender.Dispatcher
}

var _ router.Fallbacks = (*App)(nil)

// Bootstrap prepares logging and storage, seeds an empty catalog when a seed
// file is configured, and builds the App.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	var seeders []bootstrap.Seeder
	if cfg.Catalog.SeedPath != "" {
		path := cfg.Catalog.SeedPath
		seeders = append(seeders, bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
			f, err := storage.LoadSeed(path)
			if err != nil {
				return err
			}
			return storage.New(db).Seed(ctx, f)
		}))
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Modules:  bootstrap.Modules{Seeders: seeders},
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB)
}

// New builds the App over an open, migrated database.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}
	repo := storage.New(db)
	store := state.NewMemoryStore()

	a := &App{
		cfg:      cfg,
		db:       db,
		repo:     repo,
		store:    store,
		nav:      navigator.New(repo),
		fsm:      state.NewRouter(store),
		reg:      tg.NewRegistry(),
		channel:  &fileChannel{chat: tele.ChatID(cfg.Media.UploadChatID)},
		notifier: &notifier{chat: tele.ChatID(cfg.Catalog.NotifyChatID)},
	}

	opts := inquiry.Options{Store: store, Items: repo, Inquiries: repo}
	if cfg.Catalog.NotifyChatID != 0 {
		opts.Notifier = a.notifier
	}
	a.flow = inquiry.New(opts)

	a.deliverer = &Deliverer{resolver: media.New(media.Options{
		Channel:           a.channel,
		Records:           repo,
		Root:              cfg.Media.Root,
		PlaceholderHandle: cfg.Media.PlaceholderHandle,
		PlaceholderPath:   cfg.Media.PlaceholderPath,
	})}

	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.adminReject,
	})
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{NotFound: a.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.fsm, a.reg, a)...)

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.rateLimited),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot == nil {
		return fmt.Errorf("bot: runtime without bot")
	}
	a.bind(rt.Bot, rt.Dispatcher)
	logger.Info(ctx, "app", "catalog.ready",
		slog.String("status", "ok"),
		slog.Int("callbacks", len(rt.Registry.ListActions())),
		slog.Int64("notify_chat_id", a.cfg.Catalog.NotifyChatID),
		slog.String("media_root", a.cfg.Media.Root),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	logger.Info(ctx, "app", "catalog.stop",
		slog.String("status", "ok"),
		slog.Uint64("committed", a.flow.Committed()),
		slog.Uint64("commit_failures", a.flow.CommitFailures()),
		slog.Uint64("notify_failures", a.flow.NotifyFailures()),
	)
	return a.db.Close()
}

// bind points the adapters at the live Bot API. It runs before updates
// are processed.
func (a *App) bind(b api, d *sender.Dispatcher) {
	a.channel.api = b
	a.notifier.api = b
	a.notifier.dispatcher = d
	a.deliverer.api = b
	a.dispatcher = d
}
