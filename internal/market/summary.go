package market

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"market-dashboard/internal/analysis/indicators"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

const summaryConcurrency = 8

// Summarizer builds the per-category market summary.
type Summarizer struct {
	provider Provider
	catalog  *Catalog
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSummarizer creates a summarizer.
func NewSummarizer(provider Provider, catalog *Catalog, logger zerolog.Logger) *Summarizer {
	return &Summarizer{provider: provider, catalog: catalog, logger: logger, now: time.Now}
}

type indexedQuote struct {
	category string
	index    int
	quote    models.Quote
}

// Summary fetches every listed instrument concurrently and compares the
// last close of the period with the first. Failed instruments are skipped
// and categories with nothing left are omitted.
func (s *Summarizer) Summary(ctx context.Context, period string) map[string][]models.Quote {
	rng := SummaryRange(period, s.now())

	p := pool.NewWithResults[indexedQuote]().WithContext(ctx).WithMaxGoroutines(summaryConcurrency)
	for _, name := range s.catalog.Categories() {
		cat, _ := s.catalog.Category(name)
		for i, entry := range cat.Entries {
			cat, i, entry := cat, i, entry
			p.Go(func(ctx context.Context) (indexedQuote, error) {
				bars, err := s.provider.GetBars(ctx, models.HistoricalRequest{
					Symbol:     entry.Symbol,
					AssetClass: cat.AssetClass,
					Interval:   rng.Interval,
					From:       rng.From,
					To:         rng.To,
				})
				if err != nil {
					return indexedQuote{}, err
				}
				q, err := QuoteFromBars(entry, bars)
				if err != nil {
					return indexedQuote{}, err
				}
				return indexedQuote{category: cat.Name, index: i, quote: q}, nil
			})
		}
	}

	results, err := p.Wait()
	if err != nil {
		s.logger.Warn().Err(err).Str("period", period).Msg("Some instruments were skipped in market summary")
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].category != results[j].category {
			return results[i].category < results[j].category
		}
		return results[i].index < results[j].index
	})

	summary := make(map[string][]models.Quote)
	for _, r := range results {
		summary[r.category] = append(summary[r.category], r.quote)
	}
	return summary
}

// QuoteFromBars summarises a series as price and change over the series.
func QuoteFromBars(entry Entry, bars models.BarSeries) (models.Quote, error) {
	last, ok := bars.Last()
	if !ok {
		return models.Quote{}, apperrors.NewDataError("bars", entry.Symbol, "no bars for quote", apperrors.ErrNoData)
	}
	first := bars[0].Close

	change := last.Close - first
	var pct float64
	if first != 0 {
		pct = change / first * 100
	}

	return models.Quote{
		Symbol:        entry.Symbol,
		Name:          entry.Name,
		Price:         indicators.Round2(last.Close),
		Change:        indicators.Round2(change),
		ChangePercent: indicators.Round2(pct),
		Volume:        last.Volume,
		Timestamp:     last.Timestamp,
	}, nil
}
