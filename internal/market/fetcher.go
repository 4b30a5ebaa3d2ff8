package market

import (
	"context"
	"fmt"
	"time"

	"market-dashboard/internal/analysis/mtf"
	"market-dashboard/internal/models"
)

// TimeframeFetcher supplies raw bars for each analysis timeframe of one
// symbol.
type TimeframeFetcher struct {
	Provider   Provider
	Symbol     string
	AssetClass models.AssetClass
	Now        func() time.Time
}

// FetchBars implements mtf.Fetcher. The intraday timeframes share one day
// of minute bars; the monthly timeframe gets a year of daily bars.
func (f *TimeframeFetcher) FetchBars(ctx context.Context, tf mtf.Timeframe) (models.BarSeries, error) {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	to := now()

	var (
		days     int
		interval models.BarInterval
	)
	switch tf {
	case mtf.Timeframe5Min, mtf.Timeframe15Min:
		days, interval = 1, models.IntervalMinute
	case mtf.Timeframe1Hour:
		days, interval = 5, models.IntervalHour
	case mtf.Timeframe1Day:
		days, interval = 30, models.IntervalDay
	case mtf.Timeframe1Month:
		days, interval = 365, models.IntervalDay
	default:
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}

	return f.Provider.GetBars(ctx, models.HistoricalRequest{
		Symbol:     f.Symbol,
		AssetClass: f.AssetClass,
		Interval:   interval,
		From:       to.AddDate(0, 0, -days),
		To:         to,
	})
}
