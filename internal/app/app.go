package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Elhashino/amazon-deals/internal/alerting"
	"github.com/Elhashino/amazon-deals/internal/config"
	"github.com/Elhashino/amazon-deals/internal/fetcher"
	"github.com/Elhashino/amazon-deals/internal/ingest"
	"github.com/Elhashino/amazon-deals/internal/scheduler"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.Keepa {
	return fetcher.NewKeepa(fetcher.KeepaOptions{
		BaseURL:          a.Config.Keepa.BaseURL,
		APIKey:           a.Config.Keepa.APIKey,
		Timeout:          a.Config.Keepa.RequestTimeout,
		UserAgent:        a.Config.Keepa.UserAgent,
		CycleCallBudget:  a.Config.Keepa.CycleCallBudget,
		PagesPerCategory: a.Config.Keepa.PagesPerCategory,
		HistoryDays:      a.Config.Keepa.HistoryDays,
		Categories:       a.Config.Ingest.Categories,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running ingestion service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	keepa := a.newFetcher()
	notifier := a.newNotifier()

	var dealStore storage.DealStore
	if store != nil {
		dealStore = store
	}

	svc := ingest.New(a.Config, sched, keepa, keepa, dealStore, notifier, a.Logger)

	a.Logger.Info().Msg("starting ingestion service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("ingestion service stopped")
	return nil
}

// ExportOptions hold parameters for exporting the active generation.
type ExportOptions struct {
	Category string
	Sort     string
	PNGPath  string
	CSVPath  string
	MaxRows  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Category string
	Sort     string
	Limit    int
}

// IngestOptions configure a single on-demand cycle.
type IngestOptions struct {
	DryRun bool
}
