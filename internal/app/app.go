// Package app wires configuration, content, session storage and the
// conversation engine into a runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/rabiesbot/core/bootstrap"
	"github.com/m3rciful/rabiesbot/core/logger"
	tg "github.com/m3rciful/rabiesbot/core/telegram"
	"github.com/m3rciful/rabiesbot/core/telegram/router"
	"github.com/m3rciful/rabiesbot/internal/bot"
	"github.com/m3rciful/rabiesbot/internal/config"
	"github.com/m3rciful/rabiesbot/internal/content"
	"github.com/m3rciful/rabiesbot/internal/conversation"
	"github.com/m3rciful/rabiesbot/internal/session"
)

// App owns the long-lived components of a running bot.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	store    session.Store
	content  *content.Store
	engine   *conversation.Engine
	bot      *bot.Bot
	registry *tg.Registry
}

// New bootstraps infrastructure and assembles the bot described by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	return build(ctx, cfg, bootstrap.Options{})
}

func build(ctx context.Context, cfg *config.Config, opts bootstrap.Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config provided")
	}
	opts.Config = cfg.CoreConfig()
	opts.Database = cfg.DatabaseConfig()
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	docs, err := content.Load(cfg.Content.Path)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	for _, lang := range cfg.Content.Languages {
		if !docs.HasLanguage(lang) {
			logger.Warn(ctx, "content", "language.missing", slog.String("lang", lang))
		}
	}
	if missing := docs.Missing(cfg.Content.Languages, conversation.FAQIDs); len(missing) > 0 {
		keys, truncated := logger.SummarizeStrings(missing, 10)
		logger.Warn(ctx, "content", "keys.missing",
			slog.Int("count", len(missing)),
			slog.String("keys", keys),
			slog.Bool("truncated", truncated),
		)
	}

	store, err := session.Open(ctx, cfg.Sessions, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	engine := conversation.NewEngine(docs, store, conversation.Options{
		Languages:       cfg.Content.Languages,
		DefaultLanguage: cfg.Content.DefaultLanguage,
	})
	b := bot.New(engine, docs, cfg.Content.Languages)
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		_ = store.Close()
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	logger.Info(ctx, "app", "assembled",
		slog.String("content", cfg.Content.Path),
		slog.String("languages", strings.Join(cfg.Content.Languages, ",")),
		slog.String("sessions", cfg.Sessions.Backend),
	)
	return &App{
		cfg:      cfg,
		infra:    infra,
		store:    store,
		content:  docs,
		engine:   engine,
		bot:      b,
		registry: reg,
	}, nil
}

// TelegramRunOptions builds the runtime options: command routes, the shared
// callback route, free-text routing into the conversation and default middlewares.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.bot, a.registry, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			logger.Info(ctx, "app", "routes",
				slog.Int("routes", len(routes)),
				slog.String("callbacks", strings.Join(rt.Registry.ListCallbacks(), ",")),
			)
			return nil
		},
	}, nil
}

// Close releases the session store and then the shared infrastructure.
func (a *App) Close() error {
	return errors.Join(a.store.Close(), a.infra.Close())
}
