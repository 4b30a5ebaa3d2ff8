package market

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// maxMockBars caps synthetic series; the newest bars are kept.
const maxMockBars = 5000

// MockProvider produces a deterministic random walk per symbol. The same
// symbol and range always yield the same bars.
type MockProvider struct{}

// NewMockProvider creates a synthetic data provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// GetBars generates bars between From and To. Daily bars skip weekends.
func (p *MockProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamps := mockTimestamps(req)
	if len(stamps) == 0 {
		return nil, apperrors.NewDataError("bars", req.Symbol, "empty range", apperrors.ErrNoData)
	}

	var seed int64
	for _, c := range req.Symbol {
		seed += int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	n := len(stamps)
	basePrice := 100 + rng.Float64()*900
	drift := 20 * (rng.Float64() - 0.5)

	bars := make(models.BarSeries, n)
	for i, ts := range stamps {
		trend := 0.0
		if n > 1 {
			trend = drift * float64(i) / float64(n-1)
		}
		close := math.Max(basePrice+trend+rng.NormFloat64()*5, 1)
		high := close + rng.Float64()*close*0.02
		low := math.Max(close-rng.Float64()*close*0.02, 0.1)
		open := low + rng.Float64()*(high-low)

		bars[i] = models.Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(100000 + rng.Intn(9900000)),
		}
	}
	return bars, nil
}

func mockTimestamps(req models.HistoricalRequest) []time.Time {
	if !req.To.After(req.From) {
		return nil
	}
	step := req.Interval.Duration()
	from := req.From.UTC().Truncate(step)
	if from.Before(req.From.UTC()) {
		from = from.Add(step)
	}

	var out []time.Time
	for ts := from; !ts.After(req.To.UTC()); ts = ts.Add(step) {
		if req.Interval == models.IntervalDay && req.AssetClass != models.AssetCrypto {
			if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		out = append(out, ts)
	}
	if len(out) > maxMockBars {
		out = out[len(out)-maxMockBars:]
	}
	return out
}
