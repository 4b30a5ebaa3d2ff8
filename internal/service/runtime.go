package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"market-dashboard/internal/agents"
	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/analysis/mtf"
	"market-dashboard/internal/analysis/report"
	"market-dashboard/internal/analysis/signals"
	"market-dashboard/internal/config"
	"market-dashboard/internal/market"
	"market-dashboard/internal/observability"
	"market-dashboard/internal/performance"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/store"
	"market-dashboard/pkg/utils"
)

const healthTimeout = 5 * time.Second

// Runtime owns the long-lived resources behind a Dashboard.
type Runtime struct {
	Dashboard *Dashboard
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Breakers  *resilience.BreakerRegistry
	Store     store.DataStore
	logger    zerolog.Logger
}

// Open builds the dashboard from configuration. A store that cannot be
// opened disables caching and report history but is not fatal.
func Open(cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	rt := &Runtime{
		Metrics:  metrics,
		Registry: registry,
		logger:   logger,
	}

	breakerCfg := resilience.DefaultBreakerConfig()
	breakerCfg.Timeout = cfg.Data.BreakerTimeout
	rt.Breakers = resilience.NewBreakerRegistry(breakerCfg, logger, metrics)

	health := resilience.NewHealthChecker(healthTimeout)

	if st, err := openStore(cfg.Data.DBPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Data.DBPath).Msg("Failed to initialize store, caching and report history disabled")
		health.RegisterComponent("database", resilience.StaticHealthCheck(resilience.HealthStatusDegraded, "store unavailable"))
	} else {
		rt.Store = st
		health.RegisterComponent("database", resilience.DatabaseHealthCheck(st.Ping))
		logger.Debug().Str("path", cfg.Data.DBPath).Msg("SQLite store initialized")
	}
	health.RegisterComponent("market_data", resilience.BreakerHealthCheck(rt.Breakers))

	provider := rt.buildProvider(cfg)

	var llm agents.LLMClient
	if cfg.HasLLM() {
		llm = agents.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		health.RegisterComponent("llm", resilience.StaticHealthCheck(resilience.HealthStatusHealthy, cfg.LLM.Model))
		logger.Debug().Str("model", cfg.LLM.Model).Msg("OpenAI LLM client initialized")
	} else {
		health.RegisterComponent("llm", resilience.StaticHealthCheck(resilience.HealthStatusDegraded, "OPENAI_API_KEY not set"))
	}

	aggregator := mtf.NewAggregator(mtf.WithLogger(logger), mtf.WithObserver(metrics))
	engine := indicators.NewDefaultEngine(cfg.Analysis.Workers)
	builder := report.NewBuilder(aggregator, logger,
		report.WithEngine(engine),
		report.WithThresholds(signals.Thresholds{
			RSIOversold:   cfg.Analysis.RSIOversold,
			RSIOverbought: cfg.Analysis.RSIOverbought,
			ADXTrend:      cfg.Analysis.ADXTrend,
		}),
	)

	rt.Dashboard = NewDashboard(Deps{
		Provider: provider,
		Builder:  builder,
		Engine:   engine,
		Store:    rt.Store,
		Metrics:  metrics,
		Health:   health,
		LLM:      llm,
		NarratorOpts: []agents.Option{
			agents.WithRateLimiter(performance.NewRateLimiter(cfg.LLM.RequestsPerMinute/60, cfg.LLM.Burst)),
		},
		DefaultPeriod: cfg.Analysis.DefaultPeriod,
		Logger:        logger,
	})

	return rt, nil
}

// buildProvider assembles breaker, retry, cache and fallback around the
// configured source. Without Alpaca credentials the synthetic provider
// serves everything.
func (rt *Runtime) buildProvider(cfg *config.Config) market.Provider {
	mock := market.NewMockProvider()
	if cfg.Data.Provider == "mock" {
		return mock
	}
	if !cfg.HasAlpacaCredentials() {
		rt.logger.Warn().Msg("Alpaca credentials not set, serving synthetic market data")
		return mock
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Data.RetryAttempts

	chain := market.ChainConfig{
		Primary:  market.NewAlpacaProvider(cfg.Credentials.Alpaca.APIKey, cfg.Credentials.Alpaca.APISecret),
		Breakers: rt.Breakers,
		Retry:    retry,
		CacheTTL: cfg.Data.CacheTTL,
		Logger:   rt.logger,
		Recorder: rt.Metrics,
	}
	if rt.Store != nil {
		chain.Cache = rt.Store
	}
	if cfg.Data.Fallback {
		chain.Fallback = mock
	}
	return market.NewChain(chain)
}

func openStore(path string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.NewSQLiteStore(path)
}

// Close releases the store.
func (rt *Runtime) Close() error {
	if rt.Store == nil {
		return nil
	}
	return rt.Store.Close()
}
