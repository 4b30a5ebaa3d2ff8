// Package signals turns indicator states into discrete trading signals and
// an overall vote.
package signals

import (
	"market-dashboard/internal/analysis"
	"market-dashboard/internal/analysis/indicators"
)

// Signal names as they appear in reports.
const (
	NameMACrossover = "MA Crossover"
	NameRSI         = "RSI"
	NameMACD        = "MACD"
	NameBollinger   = "Bollinger Bands"
	NameADX         = "ADX"
)

// strongVote is the vote count that upgrades BUY or SELL to STRONG.
const strongVote = 3

// Thresholds holds the levels used by the single-indicator rules.
type Thresholds struct {
	RSIOversold   float64
	RSIOverbought float64
	ADXTrend      float64
}

// DefaultThresholds returns the conventional 30/70 RSI and 25 ADX levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:   30,
		RSIOverbought: 70,
		ADXTrend:      25,
	}
}

// Inputs are the latest and previous indicator values the rules look at.
// Undefined values are NaN; every comparison against NaN is false.
type Inputs struct {
	SMA20, PrevSMA20     float64
	SMA50, PrevSMA50     float64
	RSI                  float64
	MACD, PrevMACD       float64
	Signal, PrevSignal   float64
	Close                float64
	UpperBand, LowerBand float64
	ADX                  float64
}

// InputsFromBundle extracts rule inputs from an indicator bundle.
func InputsFromBundle(b *indicators.Bundle) Inputs {
	return Inputs{
		SMA20:      b.Latest(indicators.KeySMA20),
		PrevSMA20:  b.Prev(indicators.KeySMA20),
		SMA50:      b.Latest(indicators.KeySMA50),
		PrevSMA50:  b.Prev(indicators.KeySMA50),
		RSI:        b.Latest(indicators.KeyRSI),
		MACD:       b.Latest(indicators.KeyMACD),
		PrevMACD:   b.Prev(indicators.KeyMACD),
		Signal:     b.Latest(indicators.KeySignal),
		PrevSignal: b.Prev(indicators.KeySignal),
		Close:      indicators.Last(b.Bars().Closes()),
		UpperBand:  b.Latest(indicators.KeyUpperBand),
		LowerBand:  b.Latest(indicators.KeyLowerBand),
		ADX:        b.Latest(indicators.KeyADX),
	}
}

// SignalSet is the outcome of every rule plus the vote.
type SignalSet struct {
	MACrossover   analysis.SignalLabel `json:"MA Crossover"`
	RSI           analysis.SignalLabel `json:"RSI"`
	MACD          analysis.SignalLabel `json:"MACD"`
	Bollinger     analysis.SignalLabel `json:"Bollinger Bands"`
	ADX           analysis.SignalLabel `json:"ADX"`
	OverallSignal analysis.SignalLabel `json:"overall_signal"`
	BuyCount      int                  `json:"buy_count"`
	SellCount     int                  `json:"sell_count"`
}

// Map returns the individual signals keyed by name.
func (s SignalSet) Map() map[string]analysis.SignalLabel {
	return map[string]analysis.SignalLabel{
		NameMACrossover: s.MACrossover,
		NameRSI:         s.RSI,
		NameMACD:        s.MACD,
		NameBollinger:   s.Bollinger,
		NameADX:         s.ADX,
	}
}

// Aggregator evaluates the signal rules.
type Aggregator struct {
	thresholds Thresholds
}

// NewAggregator creates an aggregator with the default thresholds.
func NewAggregator() *Aggregator {
	return &Aggregator{thresholds: DefaultThresholds()}
}

// NewAggregatorWithThresholds creates an aggregator with custom thresholds.
func NewAggregatorWithThresholds(t Thresholds) *Aggregator {
	return &Aggregator{thresholds: t}
}

// ComputeSignals evaluates the default rules over an indicator bundle.
func ComputeSignals(b *indicators.Bundle) SignalSet {
	return NewAggregator().Evaluate(InputsFromBundle(b))
}

// Evaluate applies each rule and votes. ADX does not vote.
func (a *Aggregator) Evaluate(in Inputs) SignalSet {
	set := SignalSet{
		MACrossover: crossover(in.PrevSMA20, in.SMA20, in.PrevSMA50, in.SMA50),
		RSI:         a.rsi(in.RSI),
		MACD:        crossover(in.PrevMACD, in.MACD, in.PrevSignal, in.Signal),
		Bollinger:   bollinger(in.Close, in.UpperBand, in.LowerBand),
		ADX:         a.adx(in.ADX),
	}

	for _, label := range []analysis.SignalLabel{set.MACrossover, set.RSI, set.MACD, set.Bollinger} {
		switch label {
		case analysis.SignalBuy:
			set.BuyCount++
		case analysis.SignalSell:
			set.SellCount++
		}
	}
	set.OverallSignal = Overall(set.BuyCount, set.SellCount)
	return set
}

// Overall maps vote counts to the overall recommendation. A tie,
// including no votes at all, is NEUTRAL.
func Overall(buyCount, sellCount int) analysis.SignalLabel {
	switch {
	case buyCount >= strongVote:
		return analysis.SignalStrongBuy
	case buyCount > sellCount:
		return analysis.SignalBuy
	case sellCount >= strongVote:
		return analysis.SignalStrongSell
	case sellCount > buyCount:
		return analysis.SignalSell
	default:
		return analysis.SignalNeutral
	}
}

// crossover reports BUY when the fast line moves from at-or-below to above
// the slow line between the two bars, SELL for the opposite move.
func crossover(prevFast, fast, prevSlow, slow float64) analysis.SignalLabel {
	switch {
	case prevFast <= prevSlow && fast > slow:
		return analysis.SignalBuy
	case prevFast >= prevSlow && fast < slow:
		return analysis.SignalSell
	default:
		return analysis.SignalNeutral
	}
}

func (a *Aggregator) rsi(v float64) analysis.SignalLabel {
	switch {
	case v < a.thresholds.RSIOversold:
		return analysis.SignalBuy
	case v > a.thresholds.RSIOverbought:
		return analysis.SignalSell
	default:
		return analysis.SignalNeutral
	}
}

func bollinger(close, upper, lower float64) analysis.SignalLabel {
	switch {
	case close < lower:
		return analysis.SignalBuy
	case close > upper:
		return analysis.SignalSell
	default:
		return analysis.SignalNeutral
	}
}

func (a *Aggregator) adx(v float64) analysis.SignalLabel {
	if v > a.thresholds.ADXTrend {
		return analysis.SignalStrongTrend
	}
	return analysis.SignalWeakTrend
}
