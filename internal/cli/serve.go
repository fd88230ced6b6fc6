package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"market-dashboard/internal/api"
	"market-dashboard/internal/scheduler"
	"market-dashboard/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the dashboard REST API. The warm-up scheduler keeps the index
bundle and movers fresh when enabled in config.toml.

Stops gracefully on SIGINT or SIGTERM.`,
		Example: `  marketdash serve
  marketdash serve --addr :8080 --no-scheduler`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			logger := app.Logger

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := app.Service()
			defer app.Close()

			if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
				return errorf(output, "create store directory: %w", err)
			}
			watchlists, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return errorf(output, "open watchlist store: %w", err)
			}
			defer watchlists.Close()

			server := api.New(svc, watchlists, app.HealthMonitor(), api.Config{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Auth:           api.HeaderAuthenticator{Header: cfg.Server.UserHeader},
			}, logger)

			if cfg.Scheduler.Enabled && !noScheduler {
				sched := scheduler.NewScheduler(ctx, svc, scheduler.Config{
					IndicesCron: cfg.Scheduler.IndicesCron,
					MoversCron:  cfg.Scheduler.MoversCron,
					MoversCount: cfg.Scheduler.MoversCount,
				}, logger)
				if err := sched.RegisterAll(); err != nil {
					return errorf(output, "%w", err)
				}
				go sched.RunNow()
				sched.Start()
				defer sched.Stop()
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Listen(cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return errorf(output, "serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	cmd.Flags().Bool("no-scheduler", false, "disable the cache warm-up jobs")

	return cmd
}
