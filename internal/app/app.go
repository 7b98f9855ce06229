package app

import (
	"context"

	"github.com/packdb/packdb/core/bootstrap"
	coretelegram "github.com/packdb/packdb/core/telegram"
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/middleware"
	"github.com/packdb/packdb/core/telegram/router"
	"github.com/packdb/packdb/core/telegram/state"
	"github.com/packdb/packdb/core/telegram/ui"
	"github.com/packdb/packdb/internal/bot"
	"github.com/packdb/packdb/internal/config"
	"github.com/packdb/packdb/internal/limits"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// App holds everything built during bootstrap.
type App struct {
	cfg      *config.Config
	fsm      state.Manager
	handlers *bot.Handlers
}

// New runs the bootstrap pipeline and assembles the service graph.
func New(cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store := storage.New(res.DB)
	gate := limits.NewGate(store, cfg.Limits.MaxEntries)
	fsm := state.NewMemoryManager()
	handlers := bot.New(store, gate, fsm, bot.Config{
		ViewPageSize:   cfg.Pages.View,
		InlinePageSize: cfg.Pages.Inline,
	})

	return &App{
		cfg:      cfg,
		fsm:      fsm,
		handlers: handlers,
	}, nil
}

// TelegramRunOptions builds the full routing table for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	a.handlers.RegisterStates()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	var fallbacks ui.FallbackProvider = a.handlers
	reg.SetCallbackNotFound(fallbacks.UnknownCallback())
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.fsm, reg, router.TextOptions{
		UnknownText:     fallbacks.UnknownText(),
		UnknownDocument: fallbacks.UnknownDocument(),
	})...)
	routes = append(routes,
		a.contentRoute(tele.OnSticker),
		a.contentRoute(tele.OnAnimation),
		a.inlineRoute(),
	)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.handlers.AttachBot(rt.Bot)
			return nil
		},
	}, nil
}

// contentRoute feeds stickers and animations into the active conversation,
// mirroring how text and documents reach the FSM.
func (a *App) contentRoute(endpoint string) coretelegram.Route {
	handler := func(c tele.Context) error {
		if a.fsm.InProgress(c.Sender().ID) {
			return a.fsm.ManagerHandler(c)
		}
		return tghelpers.SendText(c, "Use /add to put that into a pack.")
	}
	return coretelegram.Route{
		Endpoint: endpoint,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func (a *App) inlineRoute() coretelegram.Route {
	return coretelegram.Route{
		Endpoint: tele.OnQuery,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(a.handlers.OnInlineQuery)),
	}
}
