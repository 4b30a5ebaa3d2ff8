package market

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/internal/resilience"
	"market-dashboard/pkg/utils"
)

// Recorder receives market data metrics.
type Recorder interface {
	RecordProviderRequest(provider, assetClass string, duration time.Duration, err error)
	RecordCacheLookup(hit bool)
	RecordFallback(assetClass string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderRequest(string, string, time.Duration, error) {}
func (nopRecorder) RecordCacheLookup(bool)                                     {}
func (nopRecorder) RecordFallback(string)                                      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// FallbackProvider serves from the primary provider and switches to the
// fallback when the primary fails or returns nothing.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
	logger   zerolog.Logger
	recorder Recorder
}

// NewFallbackProvider wraps primary with a fallback.
func NewFallbackProvider(primary, fallback Provider, logger zerolog.Logger, recorder Recorder) *FallbackProvider {
	return &FallbackProvider{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recorder: recorderOrNop(recorder),
	}
}

// Name returns the provider name.
func (p *FallbackProvider) Name() string {
	return p.primary.Name()
}

// GetBars fetches from the primary, then the fallback. Cancellation is
// never masked.
func (p *FallbackProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	bars, err := p.primary.GetBars(ctx, req)
	if err == nil && len(bars) > 0 {
		return bars, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	p.logger.Warn().
		Err(err).
		Str("symbol", req.Symbol).
		Str("asset_class", string(req.AssetClass)).
		Str("fallback", p.fallback.Name()).
		Msg("Primary provider failed, using fallback data")
	p.recorder.RecordFallback(string(req.AssetClass))

	return p.fallback.GetBars(ctx, req)
}

// ResilientProvider retries transient failures and trips a breaker per
// provider and asset class.
type ResilientProvider struct {
	next     Provider
	breakers *resilience.BreakerRegistry
	retry    utils.RetryConfig
	recorder Recorder
}

// NewResilientProvider wraps next with retry and circuit breaking.
func NewResilientProvider(next Provider, breakers *resilience.BreakerRegistry, retry utils.RetryConfig, recorder Recorder) *ResilientProvider {
	if retry.IsRetryable == nil {
		retry.IsRetryable = isTransient
	}
	return &ResilientProvider{
		next:     next,
		breakers: breakers,
		retry:    retry,
		recorder: recorderOrNop(recorder),
	}
}

// Name returns the provider name.
func (p *ResilientProvider) Name() string {
	return p.next.Name()
}

// GetBars fetches through the breaker.
func (p *ResilientProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	start := time.Now()
	name := p.next.Name() + ":" + string(req.AssetClass)

	bars, err := resilience.Execute(ctx, p.breakers, name, func() (models.BarSeries, error) {
		return utils.RetryWithResult(ctx, p.retry, func() (models.BarSeries, error) {
			return p.next.GetBars(ctx, req)
		})
	})

	p.recorder.RecordProviderRequest(p.next.Name(), string(req.AssetClass), time.Since(start), err)
	return bars, err
}

// isTransient reports whether a provider error is worth retrying.
func isTransient(err error) bool {
	return !errors.Is(err, apperrors.ErrNoData) &&
		!errors.Is(err, apperrors.ErrUnsupportedAsset) &&
		!errors.Is(err, apperrors.ErrProviderUnavailable) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// BarCache is the storage used by CachedProvider.
type BarCache interface {
	SaveBars(ctx context.Context, symbol string, interval models.BarInterval, bars models.BarSeries) error
	GetBars(ctx context.Context, symbol string, interval models.BarInterval, from, to time.Time) (models.BarSeries, error)
	GetBarsFreshness(ctx context.Context, symbol string, interval models.BarInterval) (time.Time, error)
}

// coverageSlack tolerates weekends and holidays at the start of a range.
const coverageSlack = 4 * 24 * time.Hour

// CachedProvider serves bars from a local cache while the newest cached bar
// is recent enough, and writes through on misses.
type CachedProvider struct {
	next     Provider
	cache    BarCache
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	recorder Recorder
}

// NewCachedProvider wraps next with a bar cache.
func NewCachedProvider(next Provider, cache BarCache, ttl time.Duration, logger zerolog.Logger, recorder Recorder) *CachedProvider {
	return &CachedProvider{
		next:     next,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		recorder: recorderOrNop(recorder),
	}
}

// Name returns the provider name.
func (p *CachedProvider) Name() string {
	return p.next.Name()
}

// GetBars returns cached bars on a hit. A hit needs the newest cached bar
// within one TTL plus one bar of now, and the cache reaching back to the
// start of the range. Cache failures only cost a refetch.
func (p *CachedProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	if bars, ok := p.lookup(ctx, req); ok {
		p.recorder.RecordCacheLookup(true)
		return bars, nil
	}
	p.recorder.RecordCacheLookup(false)

	bars, err := p.next.GetBars(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SaveBars(ctx, req.Symbol, req.Interval, bars); err != nil {
		p.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to cache bars")
	}
	return bars, nil
}

func (p *CachedProvider) lookup(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, bool) {
	if p.ttl <= 0 {
		return nil, false
	}

	newest, err := p.cache.GetBarsFreshness(ctx, req.Symbol, req.Interval)
	if err != nil || newest.IsZero() {
		return nil, false
	}
	if p.now().Sub(newest) > p.ttl+req.Interval.Duration() {
		return nil, false
	}

	bars, err := p.cache.GetBars(ctx, req.Symbol, req.Interval, req.From, req.To)
	if err != nil || len(bars) == 0 {
		return nil, false
	}
	if bars[0].Timestamp.Sub(req.From) > coverageSlack {
		return nil, false
	}
	return bars, true
}
