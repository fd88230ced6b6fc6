package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Market Dashboard Configuration

[server]
# Listen address (PORT overrides the port)
addr = ":5001"
# Origins allowed to call the API from a browser
allowed_origins = ["http://localhost:3000"]
# Header set by the trusted auth proxy to the signed-in user id
user_header = "X-User-Id"

[cache]
# Cache backend: redis, memory or none
backend = "redis"
# VALKEY_HOST / VALKEY_PORT / VALKEY_PASSWORD override these
host = "localhost"
port = 6379
db = 0
dial_timeout = "2s"
# Delay between re-dial attempts while the cache is down
reconnect_interval = "2s"

[providers]
# Bound on a single upstream call
timeout = "10s"
# Consecutive failures before a provider is short-circuited, and for how long
breaker_threshold = 5
breaker_cooldown = "30s"
alpaca_data_url = "https://data.alpaca.markets"
alpaca_trading_url = "https://paper-api.alpaca.markets"
# Alpaca feed: iex or sip
alpaca_feed = "iex"
yahoo_url = "https://query1.finance.yahoo.com"
finnhub_url = "https://finnhub.io/api/v1"
# Calls per minute per provider, 0 for unlimited
alpaca_rate_limit = 200
finnhub_rate_limit = 60
yahoo_rate_limit = 0

[ttl]
quote = "60s"
profile = "24h"
bars = "15m"
search = "1h"
movers = "60s"
indices = "60s"
details = "30s"
holdings = "6h"
# Lifetime of the bundled holdings served when the live call yields nothing
holdings_fallback = "1h"
news = "15m"
clock = "30s"

[logging]
# debug, info, warn, error
level = "info"
# Structured JSON on stdout instead of the console writer
json = false
# Rotating log file
file = false
# file_path = "~/.config/market-dashboard/logs/marketdash.log"
max_size = 100
max_backups = 7
max_age = 30

[scheduler]
# Keep the dashboard entries warm while serving
enabled = true
indices_cron = "@every 1m"
movers_cron = "@every 1m"
movers_count = 5

[store]
# Watchlist database, defaults to watchlists.db next to this file
path = ""
`

const credentialsTemplate = `# Market Dashboard API Credentials
# Keep this file secure. Environment variables take precedence.

[alpaca]
# ALPACA_API_KEY / ALPACA_API_SECRET
api_key = ""
api_secret = ""

[finnhub]
# FINNHUB_API_KEY
api_key = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}

// ConfigPath returns the main config file path in dir.
func ConfigPath(dir string) string {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return filepath.Join(dir, "config.toml")
}
