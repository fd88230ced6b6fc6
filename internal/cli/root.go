// Package cli provides the command-line interface for the market dashboard.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"market-dashboard/internal/cache"
	"market-dashboard/internal/config"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/market"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/security"
	"market-dashboard/internal/source"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-14"
)

// App holds the application dependencies. Upstream clients and the cache
// connection are built on first use so that commands like version and
// config never dial out.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	store    cache.Store
	breakers *resilience.CircuitBreakerRegistry
	service  *market.Service
}

// NewRootCmd creates the root command for the CLI. Configuration is read
// from the --config directory before any command runs; the configured
// logger then replaces logger.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "marketdash",
		Short: "Market Dashboard - cached US market data service",
		Long: `Market Dashboard serves quotes, bar history, company profiles, index
snapshots, movers and news for a stock-market dashboard.

Every answer is read through a shared cache in front of Alpaca, Finnhub and
Yahoo Finance. Run 'marketdash serve' for the HTTP API, or query directly
from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/market-dashboard)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addCacheCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

// Service returns the market service, wiring it on first call.
func (a *App) Service() *market.Service {
	if a.service != nil {
		return a.service
	}

	cfg := a.Config
	a.store = newCacheStore(cfg, a.Logger)

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = cfg.Providers.BreakerThreshold
	breakerCfg.Cooldown = cfg.Providers.BreakerCooldown
	breakerCfg.IsFailure = source.TripsBreaker
	a.breakers = resilience.NewCircuitBreakerRegistry(breakerCfg, a.Logger)

	opts := source.Options{
		Timeout:    cfg.Providers.Timeout,
		Breakers:   a.breakers,
		HTTPClient: &http.Client{},
		Logger:     a.Logger,
		RateLimits: cfg.RateLimits(),
	}
	prices := source.NewAlpaca(source.AlpacaConfig{
		APIKey:     cfg.Credentials.Alpaca.APIKey,
		APISecret:  cfg.Credentials.Alpaca.APISecret,
		DataURL:    cfg.Providers.AlpacaDataURL,
		TradingURL: cfg.Providers.AlpacaTradingURL,
		Feed:       cfg.Providers.AlpacaFeed,
	}, opts)
	fundamentals := source.NewFinnhub(cfg.Providers.FinnhubURL, cfg.Credentials.Finnhub.APIKey, opts)
	indices := source.NewYahoo(cfg.Providers.YahooURL, opts)

	a.service = market.NewService(a.store, prices, fundamentals, indices,
		market.WithTTLs(cfg.TTLs()),
		market.WithLogger(a.Logger.With().Str("component", "market").Logger()),
	)
	return a.service
}

// HealthMonitor reports each provider's breaker. The API adds the cache.
func (a *App) HealthMonitor() *resilience.HealthMonitor {
	a.Service()
	m := resilience.NewHealthMonitor()
	for _, name := range []string{"alpaca", "finnhub", "yahoo"} {
		m.RegisterComponent(name, resilience.BreakerCheck(a.breakers.Get(name)))
	}
	return m
}

// Close releases the cache connection.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func newCacheStore(cfg *config.Config, logger zerolog.Logger) cache.Store {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore()
	case "none":
		return cache.NopStore{}
	default:
		store := cache.NewRedisStore(cfg.RedisConfig(), logger)
		awaitConnected(store, cfg.Cache.DialTimeout)
		return store
	}
}

// awaitConnected gives the first dial a chance to land so one-shot commands
// can use the cache. Serving works either way.
func awaitConnected(store cache.Store, timeout time.Duration) {
	deadline := time.Now().Add(timeout + 100*time.Millisecond)
	for store.State() != cache.StateConnected && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Market Dashboard v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redacted(app.Config))
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.Config.Dir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				return errorf(output, "configuration validation failed: %w", err)
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	mask := security.MaskCredential
	out.Cache.Password = mask(out.Cache.Password)
	out.Credentials.Alpaca.APIKey = mask(out.Credentials.Alpaca.APIKey)
	out.Credentials.Alpaca.APISecret = mask(out.Credentials.Alpaca.APISecret)
	out.Credentials.Finnhub.APIKey = mask(out.Credentials.Finnhub.APIKey)
	return out
}

func showConfig(output *Output, cfg *config.Config) error {
	set := func(s string) string {
		if s == "" {
			return output.Red("not set")
		}
		return output.Green("set")
	}

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Origins:         %v\n", cfg.Server.AllowedOrigins)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Backend:         %s\n", cfg.Cache.Backend)
	if cfg.Cache.Backend == "redis" {
		output.Printf("  Address:         %s (db %d)\n", cfg.RedisConfig().Addr, cfg.Cache.DB)
	}
	output.Println()

	output.Bold("Providers")
	output.Printf("  Timeout:         %s\n", cfg.Providers.Timeout)
	output.Printf("  Alpaca:          %s (feed %s)\n", cfg.Providers.AlpacaDataURL, cfg.Providers.AlpacaFeed)
	output.Printf("  Alpaca key:      %s\n", set(cfg.Credentials.Alpaca.APIKey))
	output.Printf("  Finnhub:         %s\n", cfg.Providers.FinnhubURL)
	output.Printf("  Finnhub key:     %s\n", set(cfg.Credentials.Finnhub.APIKey))
	output.Printf("  Yahoo:           %s\n", cfg.Providers.YahooURL)
	output.Println()

	output.Bold("Cache Lifetimes")
	output.Printf("  Quote %s  Bars %s  Profile %s  Indices %s  Details %s\n",
		cfg.TTL.Quote, cfg.TTL.Bars, cfg.TTL.Profile, cfg.TTL.Indices, cfg.TTL.Details)
	output.Println()

	output.Bold("Scheduler")
	output.Printf("  Enabled:         %v\n", cfg.Scheduler.Enabled)
	output.Printf("  Indices:         %s\n", cfg.Scheduler.IndicesCron)
	output.Printf("  Movers:          %s\n", cfg.Scheduler.MoversCron)

	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// errorf reports the error on output and marks it as shown.
func errorf(output *Output, format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	if output.IsJSON() {
		output.JSON(map[string]string{"error": err.Error()})
	} else {
		output.Error("%v", err)
	}
	return reportedError{err}
}

type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already printed by a command.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
