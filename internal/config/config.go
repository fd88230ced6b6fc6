// Package config provides configuration management for the market dashboard.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"market-dashboard/internal/cache"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/market"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	TTL         TTLConfig       `mapstructure:"ttl"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Store       StoreConfig     `mapstructure:"store"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately

	// Dir is the directory the files were read from.
	Dir string `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// UserHeader names the header a trusted upstream proxy sets to the
	// authenticated user id.
	UserHeader string `mapstructure:"user_header"`
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	Backend           string        `mapstructure:"backend"` // redis, memory, none
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// ProvidersConfig holds upstream endpoints and call limits.
type ProvidersConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	AlpacaDataURL    string        `mapstructure:"alpaca_data_url"`
	AlpacaTradingURL string        `mapstructure:"alpaca_trading_url"`
	AlpacaFeed       string        `mapstructure:"alpaca_feed"` // iex, sip
	YahooURL         string        `mapstructure:"yahoo_url"`
	FinnhubURL       string        `mapstructure:"finnhub_url"`

	// Calls per minute; 0 is unlimited.
	AlpacaRateLimit  int `mapstructure:"alpaca_rate_limit"`
	FinnhubRateLimit int `mapstructure:"finnhub_rate_limit"`
	YahooRateLimit   int `mapstructure:"yahoo_rate_limit"`
}

// TTLConfig holds cache lifetimes per entity.
type TTLConfig struct {
	Quote            time.Duration `mapstructure:"quote"`
	Profile          time.Duration `mapstructure:"profile"`
	Bars             time.Duration `mapstructure:"bars"`
	Search           time.Duration `mapstructure:"search"`
	Movers           time.Duration `mapstructure:"movers"`
	Indices          time.Duration `mapstructure:"indices"`
	Details          time.Duration `mapstructure:"details"`
	Holdings         time.Duration `mapstructure:"holdings"`
	HoldingsFallback time.Duration `mapstructure:"holdings_fallback"`
	News             time.Duration `mapstructure:"news"`
	Clock            time.Duration `mapstructure:"clock"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// SchedulerConfig holds the cache warm-up schedule.
type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	IndicesCron string `mapstructure:"indices_cron"`
	MoversCron  string `mapstructure:"movers_cron"`
	MoversCount int    `mapstructure:"movers_count"`
}

// StoreConfig holds the watchlist database location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Credentials holds API credentials.
type Credentials struct {
	Alpaca  AlpacaCredentials  `mapstructure:"alpaca"`
	Finnhub FinnhubCredentials `mapstructure:"finnhub"`
}

// AlpacaCredentials holds Alpaca API credentials.
type AlpacaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// FinnhubCredentials holds Finnhub API credentials.
type FinnhubCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/market-dashboard"
	}
	return filepath.Join(home, ".config", "market-dashboard")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and the defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.user_header", "X-User-Id")

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.dial_timeout", "2s")
	v.SetDefault("cache.reconnect_interval", "2s")

	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.breaker_threshold", 5)
	v.SetDefault("providers.breaker_cooldown", "30s")
	v.SetDefault("providers.alpaca_data_url", "https://data.alpaca.markets")
	v.SetDefault("providers.alpaca_trading_url", "https://paper-api.alpaca.markets")
	v.SetDefault("providers.alpaca_feed", "iex")
	v.SetDefault("providers.yahoo_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.finnhub_url", "https://finnhub.io/api/v1")
	v.SetDefault("providers.alpaca_rate_limit", 200)
	v.SetDefault("providers.finnhub_rate_limit", 60)
	v.SetDefault("providers.yahoo_rate_limit", 0)

	ttl := market.DefaultTTLs()
	v.SetDefault("ttl.quote", ttl.Quote.String())
	v.SetDefault("ttl.profile", ttl.Profile.String())
	v.SetDefault("ttl.bars", ttl.Bars.String())
	v.SetDefault("ttl.search", ttl.Search.String())
	v.SetDefault("ttl.movers", ttl.Movers.String())
	v.SetDefault("ttl.indices", ttl.Indices.String())
	v.SetDefault("ttl.details", ttl.Details.String())
	v.SetDefault("ttl.holdings", ttl.Holdings.String())
	v.SetDefault("ttl.holdings_fallback", ttl.HoldingsFallback.String())
	v.SetDefault("ttl.news", ttl.News.String())
	v.SetDefault("ttl.clock", ttl.Clock.String())

	logs := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logs.Level)
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.file", logs.File)
	v.SetDefault("logging.file_path", logs.FilePath)
	v.SetDefault("logging.max_size", logs.MaxSize)
	v.SetDefault("logging.max_backups", logs.MaxBackups)
	v.SetDefault("logging.max_age", logs.MaxAge)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.indices_cron", "@every 1m")
	v.SetDefault("scheduler.movers_cron", "@every 1m")
	v.SetDefault("scheduler.movers_count", market.DefaultMoversCount)

	v.SetDefault("store.path", "")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and run on defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(configDir, "watchlists.db")
	}
	return nil
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

// loadDotEnv exports variables from path without overriding the process
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func applyEnvOverrides(cfg *Config) {
	// Alpaca credentials
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Credentials.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Credentials.Alpaca.APISecret = v
	}

	// Finnhub credentials
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Credentials.Finnhub.APIKey = v
	}

	// Cache server
	if v := os.Getenv("VALKEY_HOST"); v != "" {
		cfg.Cache.Host = v
	}
	if v := os.Getenv("VALKEY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Port = port
		}
	}
	if v := os.Getenv("VALKEY_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}

	// Listen port
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
	}

	switch c.Cache.Backend {
	case "redis", "memory", "none":
	default:
		return invalid("cache.backend %q (must be redis, memory or none)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" {
		if c.Cache.Host == "" {
			return invalid("cache.host is required for the redis backend")
		}
		if c.Cache.Port <= 0 || c.Cache.Port > 65535 {
			return invalid("cache.port %d out of range", c.Cache.Port)
		}
	}
	if c.Cache.DB < 0 {
		return invalid("cache.db must be non-negative")
	}

	if c.Providers.Timeout <= 0 {
		return invalid("providers.timeout must be positive")
	}
	if c.Providers.BreakerThreshold < 1 {
		return invalid("providers.breaker_threshold must be at least 1")
	}
	if c.Providers.AlpacaRateLimit < 0 || c.Providers.FinnhubRateLimit < 0 || c.Providers.YahooRateLimit < 0 {
		return invalid("providers rate limits cannot be negative")
	}
	if f := c.Providers.AlpacaFeed; f != "iex" && f != "sip" {
		return invalid("providers.alpaca_feed %q (must be iex or sip)", f)
	}

	for name, d := range map[string]time.Duration{
		"quote": c.TTL.Quote, "profile": c.TTL.Profile, "bars": c.TTL.Bars,
		"search": c.TTL.Search, "movers": c.TTL.Movers, "indices": c.TTL.Indices,
		"details": c.TTL.Details, "holdings": c.TTL.Holdings,
		"holdings_fallback": c.TTL.HoldingsFallback, "news": c.TTL.News, "clock": c.TTL.Clock,
	} {
		if d <= 0 {
			return invalid("ttl.%s must be positive", name)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q (must be debug, info, warn or error)", c.Logging.Level)
	}

	if c.Scheduler.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		for name, spec := range map[string]string{"indices_cron": c.Scheduler.IndicesCron, "movers_cron": c.Scheduler.MoversCron} {
			if spec == "" {
				continue
			}
			if _, err := parser.Parse(spec); err != nil {
				return invalid("scheduler.%s: %v", name, err)
			}
		}
	}

	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return invalid("server.addr %q: %v", c.Server.Addr, err)
	}

	return nil
}

// RedisConfig returns the cache store settings.
func (c *Config) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:              net.JoinHostPort(c.Cache.Host, strconv.Itoa(c.Cache.Port)),
		Password:          c.Cache.Password,
		DB:                c.Cache.DB,
		DialTimeout:       c.Cache.DialTimeout,
		ReconnectInterval: c.Cache.ReconnectInterval,
	}
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    !c.Logging.JSON,
		JSON:       c.Logging.JSON,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

// RateLimits returns the per-provider call budgets keyed by source name.
func (c *Config) RateLimits() map[string]int {
	return map[string]int{
		"alpaca":  c.Providers.AlpacaRateLimit,
		"finnhub": c.Providers.FinnhubRateLimit,
		"yahoo":   c.Providers.YahooRateLimit,
	}
}

// TTLs returns the cache lifetimes.
func (c *Config) TTLs() market.TTLs {
	return market.TTLs{
		Quote:            c.TTL.Quote,
		Profile:          c.TTL.Profile,
		Bars:             c.TTL.Bars,
		Search:           c.TTL.Search,
		Movers:           c.TTL.Movers,
		Indices:          c.TTL.Indices,
		Details:          c.TTL.Details,
		Holdings:         c.TTL.Holdings,
		HoldingsFallback: c.TTL.HoldingsFallback,
		News:             c.TTL.News,
		Clock:            c.TTL.Clock,
	}
}
