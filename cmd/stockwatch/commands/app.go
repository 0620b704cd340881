package commands

import (
	"fmt"
	"log/slog"

	"stock-watch/internal/config"
	"stock-watch/internal/notify"
	"stock-watch/internal/scraper"
	"stock-watch/internal/store"
)

// app holds the wired components shared by the commands
type app struct {
	cfg        *config.Config
	store      store.StateStore
	client     *scraper.Client
	observer   *scraper.Chain
	dispatcher *notify.Dispatcher
}

func newApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// one client so that every product loop shares the connection pool
	client := scraper.NewClient(scraper.ClientOptions{
		UserAgent:        cfg.UserAgent,
		Timeout:          cfg.HTTPTimeout,
		RetryCount:       cfg.HTTPRetries,
		BypassCloudflare: cfg.BypassCloudflare,
	})

	return &app{
		cfg:        cfg,
		store:      st,
		client:     client,
		observer:   scraper.NewDefaultChain(client, slog.Default(), cfg.CartProbe, cfg.ProbeCeiling),
		dispatcher: newDispatcher(cfg),
	}, nil
}

func newDispatcher(cfg *config.Config) *notify.Dispatcher {
	httpClient := notify.NewHTTPClient(0)
	return notify.NewDispatcher(slog.Default(),
		notify.NewEmailService(notify.EmailConfig{
			To:             cfg.Email.To,
			From:           cfg.Email.From,
			SendGridAPIKey: cfg.Email.SendGridAPIKey,
			SMTPHost:       cfg.Email.SMTPHost,
			SMTPPort:       cfg.Email.SMTPPort,
			SMTPUser:       cfg.Email.SMTPUser,
			SMTPPassword:   cfg.Email.SMTPPassword,
		}, httpClient),
		notify.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, httpClient),
		notify.NewBarkService(cfg.Bark.Key, cfg.Bark.Server, httpClient),
	)
}

// scheduler builds one monitor per configured product
func (a *app) scheduler() *scraper.Scheduler {
	monitors := make([]*scraper.Monitor, 0, len(a.cfg.Products))
	for _, p := range a.cfg.Products {
		monitors = append(monitors, scraper.NewMonitor(scraper.MonitorOptions{
			Product:     p,
			Interval:    a.cfg.PollInterval,
			Jitter:      a.cfg.PollJitter,
			Policy:      a.cfg.Policy(),
			FirstNotify: a.cfg.FirstNotify,
		}, a.observer, a.store, a.dispatcher, slog.Default()))
	}
	return scraper.NewScheduler(slog.Default(), monitors...)
}

func (a *app) Close() error {
	return a.store.Close()
}
