// Package app собирает конвейер заказов из конфигурации. Общая сборка для
// HTTP-сервера и CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ordernotify/internal/config"
	"ordernotify/internal/invoice"
	"ordernotify/internal/metrics"
	"ordernotify/internal/notify"
	"ordernotify/internal/repository"
	"ordernotify/internal/service"
)

type App struct {
	Config     *config.Config
	Store      repository.OrderStore
	Metrics    *metrics.Registry
	Dispatcher *service.Dispatcher
	Logger     *zap.Logger
}

// NewLogger production-логгер zap с уровнем из LOG_LEVEL
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return build(cfg, store, logger), nil
}

func build(cfg *config.Config, store repository.OrderStore, logger *zap.Logger) *App {
	email := notify.NewEmailChannel(cfg.Email, invoice.NewPDFGenerator(cfg.Shop))
	chat := notify.NewChatChannel(cfg.Chat)
	for _, ch := range []notify.Channel{email, chat} {
		if err := ch.Ready(); err != nil {
			// orders for this channel are still stored, delivery reports the gap
			logger.Warn("Channel not configured", zap.String("channel", string(ch.Kind())), zap.Error(err))
		}
	}

	m := metrics.NewRegistry()
	normalizer := service.NewNormalizer(logger, service.WithStrictTotal(cfg.Order.StrictTotal))
	return &App{
		Config:     cfg,
		Store:      store,
		Metrics:    m,
		Dispatcher: service.NewDispatcher(normalizer, store, email, chat, logger, m),
		Logger:     logger,
	}
}

func (a *App) Close() error {
	return a.Store.Close()
}
