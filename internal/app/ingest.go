package app

import (
	"context"
	"errors"
	"time"

	"github.com/Elhashino/amazon-deals/internal/ingest"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

// IngestOnce runs a single ingestion cycle and returns.
func (a *App) IngestOnce(ctx context.Context, opts IngestOptions) error {
	var dealStore storage.DealStore

	if opts.DryRun {
		a.Logger.Warn().Msg("dry run: scores will be computed but not committed")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; use --dry-run to ingest without persistence")
		}
		if closeStore != nil {
			defer closeStore()
		}
		dealStore = store
	}

	keepa := a.newFetcher()
	svc := ingest.New(a.Config, nil, keepa, keepa, dealStore, a.newNotifier(), a.Logger)

	return svc.RunCycle(ctx, time.Now().UTC())
}
