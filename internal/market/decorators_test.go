package market

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/store"
	"market-dashboard/pkg/utils"
)

// stubProvider returns canned results and counts calls.
type stubProvider struct {
	name  string
	bars  models.BarSeries
	err   error
	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetBars(_ context.Context, _ models.HistoricalRequest) (models.BarSeries, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.bars, s.err
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingRecorder struct {
	mu        sync.Mutex
	requests  int
	hits      int
	misses    int
	fallbacks int
}

func (r *countingRecorder) RecordProviderRequest(string, string, time.Duration, error) {
	r.mu.Lock()
	r.requests++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) RecordFallback(string) {
	r.mu.Lock()
	r.fallbacks++
	r.mu.Unlock()
}

func oneBar() models.BarSeries {
	return models.BarSeries{{Timestamp: time.Now(), Open: 1, High: 1, Low: 1, Close: 1}}
}

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func TestFallbackProvider(t *testing.T) {
	primary := &stubProvider{name: "alpaca", err: errors.New("unauthorized")}
	fallback := &stubProvider{name: "mock", bars: oneBar()}
	rec := &countingRecorder{}

	p := NewFallbackProvider(primary, fallback, zerolog.Nop(), rec)
	bars, err := p.GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, fallback.Calls())
	assert.Equal(t, 1, rec.fallbacks)
	assert.Equal(t, "alpaca", p.Name())
}

func TestFallbackProviderPrefersPrimary(t *testing.T) {
	primary := &stubProvider{name: "alpaca", bars: oneBar()}
	fallback := &stubProvider{name: "mock", bars: oneBar()}

	_, err := NewFallbackProvider(primary, fallback, zerolog.Nop(), nil).
		GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	require.NoError(t, err)
	assert.Zero(t, fallback.Calls())
}

func TestFallbackProviderKeepsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &stubProvider{name: "alpaca", err: context.Canceled}
	fallback := &stubProvider{name: "mock", bars: oneBar()}

	_, err := NewFallbackProvider(primary, fallback, zerolog.Nop(), nil).GetBars(ctx, dayRequest("AAPL", models.AssetStock))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fallback.Calls())
}

func TestResilientProviderRetriesTransientErrors(t *testing.T) {
	next := &stubProvider{name: "alpaca", err: errors.New("connection reset")}
	breakers := resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig(), zerolog.Nop(), nil)
	rec := &countingRecorder{}

	p := NewResilientProvider(next, breakers, fastRetry(), rec)
	_, err := p.GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	assert.Error(t, err)
	assert.Equal(t, 3, next.Calls())
	assert.Equal(t, 1, rec.requests)
}

func TestResilientProviderDoesNotRetryMissingData(t *testing.T) {
	next := &stubProvider{name: "alpaca", err: apperrors.NewProviderError("alpaca", "XYZ", apperrors.ErrNoData)}
	breakers := resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig(), zerolog.Nop(), nil)

	p := NewResilientProvider(next, breakers, fastRetry(), nil)
	for i := 0; i < 10; i++ {
		_, err := p.GetBars(context.Background(), dayRequest("XYZ", models.AssetStock))
		assert.ErrorIs(t, err, apperrors.ErrNoData)
	}
	assert.Equal(t, 10, next.Calls())
	assert.Equal(t, "closed", breakers.Get("alpaca:stock").State().String())
}

func TestResilientProviderOpensBreaker(t *testing.T) {
	next := &stubProvider{name: "alpaca", err: errors.New("503")}
	cfg := resilience.DefaultBreakerConfig()
	cfg.Timeout = time.Hour
	breakers := resilience.NewBreakerRegistry(cfg, zerolog.Nop(), nil)

	retry := fastRetry()
	retry.MaxAttempts = 1
	p := NewResilientProvider(next, breakers, retry, nil)

	for i := 0; i < 5; i++ {
		_, _ = p.GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	}
	_, err := p.GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, 5, next.Calls())

	// Other asset classes have their own breaker.
	_, err = p.GetBars(context.Background(), dayRequest("BTC/USD", models.AssetCrypto))
	assert.NotErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCachedProviderServesFreshBars(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	mock := NewMockProvider()
	series, err := mock.GetBars(context.Background(), dayRequest("AAPL", models.AssetStock))
	require.NoError(t, err)

	next := &stubProvider{name: "mock", bars: series}
	rec := &countingRecorder{}
	p := NewCachedProvider(next, newTestStore(t), 15*time.Minute, zerolog.Nop(), rec)
	p.now = func() time.Time { return now }

	req := dayRequest("AAPL", models.AssetStock)
	first, err := p.GetBars(context.Background(), req)
	require.NoError(t, err)
	second, err := p.GetBars(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, next.Calls())
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	require.Len(t, second, len(first))
	assert.InDelta(t, first[len(first)-1].Close, second[len(second)-1].Close, 1e-9)
}

func TestCachedProviderRefetchesStaleBars(t *testing.T) {
	series, err := NewMockProvider().GetBars(context.Background(), dayRequest("MSFT", models.AssetStock))
	require.NoError(t, err)

	next := &stubProvider{name: "mock", bars: series}
	p := NewCachedProvider(next, newTestStore(t), 15*time.Minute, zerolog.Nop(), nil)
	p.now = func() time.Time { return time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC) }

	req := dayRequest("MSFT", models.AssetStock)
	_, err = p.GetBars(context.Background(), req)
	require.NoError(t, err)
	_, err = p.GetBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Calls())
}

func TestCachedProviderNeedsCoverage(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	series, err := NewMockProvider().GetBars(context.Background(), dayRequest("NVDA", models.AssetStock))
	require.NoError(t, err)

	next := &stubProvider{name: "mock", bars: series}
	p := NewCachedProvider(next, newTestStore(t), time.Hour, zerolog.Nop(), nil)
	p.now = func() time.Time { return now }

	_, err = p.GetBars(context.Background(), dayRequest("NVDA", models.AssetStock))
	require.NoError(t, err)

	// A year of history is not covered by a month in the cache.
	longer := dayRequest("NVDA", models.AssetStock)
	longer.From = now.AddDate(-1, 0, 0)
	_, err = p.GetBars(context.Background(), longer)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Calls())
}

func TestCachedProviderPropagatesErrors(t *testing.T) {
	next := &stubProvider{name: "mock", err: apperrors.ErrNoData}
	p := NewCachedProvider(next, newTestStore(t), time.Hour, zerolog.Nop(), nil)

	_, err := p.GetBars(context.Background(), dayRequest("XYZ", models.AssetStock))
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

// switchingProvider fails until healed, then serves its bars.
type switchingProvider struct {
	stubProvider
	healthy bool
}

func (s *switchingProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	s.mu.Lock()
	s.calls++
	healthy := s.healthy
	s.mu.Unlock()
	if !healthy {
		return nil, apperrors.ErrProviderUnavailable
	}
	return s.bars, nil
}

func (s *switchingProvider) heal() {
	s.mu.Lock()
	s.healthy = true
	s.mu.Unlock()
}

func flatSeries(req models.HistoricalRequest, price float64) models.BarSeries {
	var bars models.BarSeries
	for ts := req.From; !ts.After(req.To); ts = ts.AddDate(0, 0, 1) {
		bars = append(bars, models.Bar{Timestamp: ts, Open: price, High: price, Low: price, Close: price, Volume: 1000})
	}
	return bars
}

func TestChainNeverCachesFallbackBars(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	req := dayRequest("AAPL", models.AssetStock)

	primary := &switchingProvider{stubProvider: stubProvider{name: "alpaca", bars: flatSeries(req, 999)}}
	fallback := &stubProvider{name: "mock", bars: flatSeries(req, 50)}
	cache := newTestStore(t)
	rec := &countingRecorder{}

	p := NewChain(ChainConfig{
		Primary:  primary,
		Breakers: resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig(), zerolog.Nop(), nil),
		Retry:    fastRetry(),
		Cache:    cache,
		CacheTTL: time.Hour,
		Fallback: fallback,
		Logger:   zerolog.Nop(),
		Recorder: rec,
		Now:      func() time.Time { return now },
	})

	bars, err := p.GetBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 50.0, bars[len(bars)-1].Close)
	assert.Equal(t, 1, rec.fallbacks)

	newest, err := cache.GetBarsFreshness(context.Background(), "AAPL", models.IntervalDay)
	require.NoError(t, err)
	assert.True(t, newest.IsZero(), "fallback bars must not reach the cache")

	primary.heal()
	bars, err = p.GetBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 999.0, bars[len(bars)-1].Close)
	assert.Equal(t, 2, primary.Calls())

	// Real bars are cached now.
	bars, err = p.GetBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 999.0, bars[len(bars)-1].Close)
	assert.Equal(t, 2, primary.Calls())
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, fallback.Calls())
}
