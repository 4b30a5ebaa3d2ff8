package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Market Dashboard Configuration

[server]
# Listen address
addr = ":8080"
# Per-request timeout
request_timeout = "60s"
# Allowed CORS origins
cors_origins = ["*"]

[data]
# Market data provider: "alpaca" or "mock"
provider = "alpaca"
# Serve synthetic data when the provider fails
fallback = true
# SQLite bar cache and report log
# db_path = "~/.config/market-dashboard/dashboard.db"
# How long cached bars stay fresh ("0s" disables the cache)
cache_ttl = "15m"
# Attempts per provider request
retry_attempts = 3
# How long an open circuit breaker rejects requests
breaker_timeout = "30s"

[llm]
# Chat model used for narratives
model = "gpt-4o-mini"
# OpenAI compatible endpoint, empty for the OpenAI default
base_url = ""
# Client-side rate limit
requests_per_minute = 30.0
burst = 5

[logging]
# debug, info, warn, error
level = "info"
# Also write a rotating log file
file = false
max_size = 100
max_backups = 7
max_age = 30

[analysis]
# Period used when a request does not name one
default_period = "3mo"
# Indicator engine workers
workers = 4
rsi_oversold = 30.0
rsi_overbought = 70.0
adx_trend = 25.0
`

const credentialsTemplate = `# Market Dashboard Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# Environment variables ALPACA_API_KEY, ALPACA_SECRET_KEY and OPENAI_API_KEY
# take precedence.

[alpaca]
api_key = ""
api_secret = ""

[openai]
api_key = ""
`

// writeTemplate writes a missing config file and returns its path.
func writeTemplate(configDir, name, template string, perm os.FileMode) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(template), perm); err != nil {
		return "", fmt.Errorf("writing %s template: %w", name, err)
	}
	return path, nil
}
