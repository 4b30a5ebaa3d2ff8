// Package models provides domain models for the market dashboard.
package models

import (
	"strings"
	"time"
)

// AssetClass represents the kind of instrument a symbol refers to.
type AssetClass string

const (
	AssetStock     AssetClass = "stock"
	AssetCrypto    AssetClass = "crypto"
	AssetForex     AssetClass = "forex"
	AssetCommodity AssetClass = "commodity"
	AssetIndex     AssetClass = "index"
)

// BarInterval represents the provider granularity of a bar.
type BarInterval string

const (
	IntervalMinute BarInterval = "1Min"
	IntervalHour   BarInterval = "1Hour"
	IntervalDay    BarInterval = "1Day"
)

// Duration returns the nominal length of one bar.
func (i BarInterval) Duration() time.Duration {
	switch i {
	case IntervalMinute:
		return time.Minute
	case IntervalHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Bar represents one OHLCV observation.
type Bar struct {
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BarSeries is an ordered sequence of bars, ascending by timestamp.
type BarSeries []Bar

// Len returns the number of bars.
func (s BarSeries) Len() int { return len(s) }

// Closes returns a new slice holding the close prices.
func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Highs returns a new slice holding the high prices.
func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns a new slice holding the low prices.
func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Volumes returns a new slice holding the volumes.
func (s BarSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Last returns the most recent bar.
func (s BarSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the last n bars, or the whole series when it is shorter.
func (s BarSeries) Tail(n int) BarSeries {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// HistoricalRequest describes a bar fetch.
type HistoricalRequest struct {
	Symbol     string
	AssetClass AssetClass
	Interval   BarInterval
	From       time.Time
	To         time.Time
}

// Quote is a point-in-time market summary for one symbol.
type Quote struct {
	Symbol        string    `json:"ticker"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePct"`
	Volume        float64   `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// NormalizeSymbol converts URL-safe symbol spellings to provider form.
// "btc-usd" becomes "BTC/USD".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "-USD") || strings.HasSuffix(s, "-USDT") {
		s = strings.Replace(s, "-", "/", 1)
	}
	return s
}

// MarketStatus is the US equity session state.
type MarketStatus string

const (
	MarketPreMarket  MarketStatus = "PRE_MARKET"
	MarketOpen       MarketStatus = "OPEN"
	MarketAfterHours MarketStatus = "AFTER_HOURS"
	MarketClosed     MarketStatus = "CLOSED"
)
