package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dirctl/ldapdm/internal/config"
	"github.com/dirctl/ldapdm/internal/version"
	"github.com/dirctl/ldapdm/internal/web"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the directory management HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

func serve() error {
	log.Info().Msgf("ldapdm %s starting...", version.FormatVersion())

	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	log.Logger = log.Logger.Level(cfg.LogLevel)

	app, err := web.NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopWatcher := startConfigWatcher(ctx, app)
	defer stopWatcher()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.Listen(ctx, cfg.HTTPAddr); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("graceful shutdown complete")

	return nil
}

// startConfigWatcher watches the flat schema documents and the authz
// matrix file, calling app.Reload whenever any of them changes on disk
// (SPEC_FULL.md §11's hot-reload requirement). If no watchable paths are
// configured, it is a no-op.
func startConfigWatcher(ctx context.Context, app *web.App) func() {
	paths := app.WatchPaths()
	if len(paths) == 0 {
		return func() {}
	}

	watcher, err := config.NewWatcher(paths, func() {
		if err := app.Reload(); err != nil {
			log.Error().Err(err).Msg("config: reload failed, keeping previous schema/matrix")
			return
		}

		log.Info().Msg("config: reloaded schemas and authz matrix")
	})
	if err != nil {
		log.Warn().Err(err).Msg("config: could not start file watcher, hot reload disabled")

		return func() {}
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := watcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("config: watcher stopped")
		}
	}()

	return func() { <-done }
}
