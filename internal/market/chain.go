package market

import (
	"time"

	"github.com/rs/zerolog"

	"market-dashboard/internal/resilience"
	"market-dashboard/pkg/utils"
)

// ChainConfig describes the provider stack around a live source.
type ChainConfig struct {
	Primary  Provider
	Breakers *resilience.BreakerRegistry
	Retry    utils.RetryConfig
	// Cache is optional. Only bars from Primary are written to it.
	Cache    BarCache
	CacheTTL time.Duration
	// Fallback is optional and is never cached.
	Fallback Provider
	Logger   zerolog.Logger
	Recorder Recorder
	// Now overrides the cache clock.
	Now func() time.Time
}

// NewChain builds Fallback(Cached(Resilient(Primary))).
func NewChain(cfg ChainConfig) Provider {
	var provider Provider = NewResilientProvider(cfg.Primary, cfg.Breakers, cfg.Retry, cfg.Recorder)
	if cfg.Cache != nil {
		cached := NewCachedProvider(provider, cfg.Cache, cfg.CacheTTL, cfg.Logger, cfg.Recorder)
		if cfg.Now != nil {
			cached.now = cfg.Now
		}
		provider = cached
	}
	if cfg.Fallback != nil {
		provider = NewFallbackProvider(provider, cfg.Fallback, cfg.Logger, cfg.Recorder)
	}
	return provider
}
