package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/Elhashino/amazon-deals/internal/server"
)

// Serve runs the read API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the read api needs a store")
	}
	if closeStore != nil {
		defer closeStore()
	}

	srv := server.New(a.Config.Server, store, a.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(a.Config.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}

	a.Logger.Info().Msg("read api stopped")
	return nil
}
