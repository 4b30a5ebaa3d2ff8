package agents

import (
	"context"
	"fmt"
	"strings"

	"market-dashboard/internal/analysis/indicators"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// PriceSnapshot is the day's price context for a catalyst summary.
type PriceSnapshot struct {
	Open          float64 `json:"open"`
	Current       float64 `json:"current"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
}

// CatalystReport is the fundamental catalyst summary for one symbol.
type CatalystReport struct {
	Symbol   string        `json:"symbol"`
	Date     string        `json:"date"`
	Price    PriceSnapshot `json:"price"`
	Analysis string        `json:"analysis"`
	// Fallback is set when the analysis is the canned text used while the
	// language model is unavailable.
	Fallback bool `json:"fallback"`
}

// levelBand places simple support and resistance around the current price.
const levelBand = 0.02

// SnapshotFromBars derives the price context from daily bars. A single bar
// is its own previous close.
func SnapshotFromBars(bars models.BarSeries) (PriceSnapshot, bool) {
	last, ok := bars.Last()
	if !ok {
		return PriceSnapshot{}, false
	}
	prev := last
	if len(bars) >= 2 {
		prev = bars[len(bars)-2]
	}

	current := indicators.Round2(last.Close)
	previous := indicators.Round2(prev.Close)
	change := indicators.Round2(current - previous)
	var pct float64
	if previous != 0 {
		pct = indicators.Round2(change / previous * 100)
	}

	return PriceSnapshot{
		Open:          indicators.Round2(last.Open),
		Current:       current,
		PreviousClose: previous,
		Change:        change,
		ChangePct:     pct,
		Support:       indicators.Round2(current * (1 - levelBand)),
		Resistance:    indicators.Round2(current * (1 + levelBand)),
	}, true
}

// CatalystSummary writes today's catalyst outlook for a symbol. When the
// model fails the summary falls back to a templated price description.
func (n *Narrator) CatalystSummary(ctx context.Context, symbol string) (*CatalystReport, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if n.sources.DailyBars == nil {
		return nil, apperrors.NewDataError("bars", symbol, "no daily bar source", apperrors.ErrNoData)
	}

	bars, err := n.sources.DailyBars(ctx, symbol)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to load prices for %s", symbol)
	}
	snap, ok := SnapshotFromBars(bars)
	if !ok {
		return nil, apperrors.NewDataError("bars", symbol, "no daily bars", apperrors.ErrNoData)
	}

	date := n.now().Format("January 02, 2006")
	out := &CatalystReport{Symbol: symbol, Date: date, Price: snap}

	analysis, err := n.call(ctx, "catalyst_summary", func(ctx context.Context) (string, error) {
		return n.llm.Complete(ctx, catalystPrompt(symbol, date, snap), CompletionOptions{Temperature: 0.7, MaxTokens: 750})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out.Analysis = fallbackCatalyst(symbol, snap)
		out.Fallback = true
		return out, nil
	}

	out.Analysis = strings.TrimSpace(analysis)
	return out, nil
}

func direction(change float64) string {
	if change < 0 {
		return "down"
	}
	return "up"
}

func catalystPrompt(symbol, date string, p PriceSnapshot) string {
	return fmt.Sprintf(`Write today's fundamental catalyst summary for %s (%s).

PRICE DATA (use these exact figures):
- Opening Price: $%.2f
- Current Price: $%.2f
- Previous Close: $%.2f
- Change: %.2f%% (%s)
- Simple Support: $%.2f
- Simple Resistance: $%.2f

INSTRUCTIONS:
1. State every PRICE DATA figure in the first paragraph.
2. Write 3-4 concise paragraphs, 300-400 words, prose only, no lists.
3. Cover overnight context, scheduled economic events with times, and geopolitical factors relevant to %s today.
4. Only use Simple Support and Simple Resistance as technical levels.
5. End with 1-2 sentences on which catalysts traders should watch today.
6. Professional, factual tone.`,
		symbol, date, p.Open, p.Current, p.PreviousClose, p.ChangePct, direction(p.Change), p.Support, p.Resistance, symbol)
}

func fallbackCatalyst(symbol string, p PriceSnapshot) string {
	return fmt.Sprintf("%s opened at $%.2f and is currently trading at $%.2f, %s %.2f%% from the previous close of $%.2f. "+
		"Watch for support at $%.2f and resistance at $%.2f during today's session. "+
		"Key economic events today could significantly impact trading.",
		symbol, p.Open, p.Current, direction(p.Change), abs(p.ChangePct), p.PreviousClose, p.Support, p.Resistance)
}
