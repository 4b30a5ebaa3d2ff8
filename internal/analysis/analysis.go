// Package analysis provides the shared vocabulary of the technical analysis
// packages: trend verdicts and signal labels.
package analysis

// Direction represents the direction of a trend.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// Strength represents the strength of a trend.
type Strength string

const (
	StrengthStrong   Strength = "Strong"
	StrengthModerate Strength = "Moderate"
	StrengthWeak     Strength = "Weak"
)

// VolumeTrend represents how volume is developing.
type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "Increasing"
	VolumeDecreasing VolumeTrend = "Decreasing"
	VolumeSteady     VolumeTrend = "Steady"
)

// TrendVerdict is the qualitative classification of one series.
type TrendVerdict struct {
	Direction    Direction   `json:"direction"`
	Strength     Strength    `json:"strength"`
	Volume       VolumeTrend `json:"volume"`
	IsAboveSMA20 *bool       `json:"is_above_sma20,omitempty"`
}

// DegradedVerdict is returned whenever a series cannot be classified.
func DegradedVerdict() TrendVerdict {
	return TrendVerdict{
		Direction: Neutral,
		Strength:  StrengthWeak,
		Volume:    VolumeSteady,
	}
}

// IsDegraded reports whether v is the insufficient-data verdict.
func (v TrendVerdict) IsDegraded() bool {
	return v.Direction == Neutral && v.Strength == StrengthWeak &&
		v.Volume == VolumeSteady && v.IsAboveSMA20 == nil
}

// SignalLabel represents the output of a single signal rule or the vote.
type SignalLabel string

const (
	SignalStrongBuy   SignalLabel = "STRONG BUY"
	SignalBuy         SignalLabel = "BUY"
	SignalNeutral     SignalLabel = "NEUTRAL"
	SignalSell        SignalLabel = "SELL"
	SignalStrongSell  SignalLabel = "STRONG SELL"
	SignalStrongTrend SignalLabel = "STRONG TREND"
	SignalWeakTrend   SignalLabel = "WEAK TREND"
)
