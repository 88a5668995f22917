package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, reconciler, fulfillment workers and sweeper",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, logCloser, err := load()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, app.Close()) }()

			server := app.httpApp()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("port", cfg.App.Port).Str("env", cfg.App.Env).Msg("starting server")
				return server.Listen(cfg.App.Port)
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down server")
				return server.ShutdownWithTimeout(shutdownTimeout)
			})
			g.Go(func() error { return app.reconciler.Run(gctx) })
			g.Go(func() error { return app.runFulfillment(gctx) })
			g.Go(func() error { return app.sweeper.Run(gctx) })

			err = g.Wait()
			log.Info().Msg("server stopped")
			return err
		},
	}
}

// background returns a context for commands that run once.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
