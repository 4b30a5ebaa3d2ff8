package indicators

import (
	"market-dashboard/internal/models"
)

// PivotLevels holds classic pivot levels.
type PivotLevels struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	R3    float64 `json:"r3"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
}

// PivotSet is the display form of the pivot levels, rounded to two
// decimals. Raw keeps the unrounded values for further computation.
type PivotSet struct {
	PivotLevels
	Raw PivotLevels `json:"-"`
}

// KeyLevels groups pivot levels into supports and resistances.
type KeyLevels struct {
	StrongSupport []float64 `json:"strong_support"`
	KeyResistance []float64 `json:"key_resistance"`
}

// StandardPivotPoints calculates classic floor-trader pivot points.
type StandardPivotPoints struct{}

// NewStandardPivotPoints creates a new Standard Pivot Points calculator.
func NewStandardPivotPoints() *StandardPivotPoints {
	return &StandardPivotPoints{}
}

func (s *StandardPivotPoints) Name() string {
	return "pivot_points"
}

func (s *StandardPivotPoints) Period() int {
	return 1
}

// Calculate calculates unrounded pivot levels from one period's HLC.
func (s *StandardPivotPoints) Calculate(high, low, close float64) PivotLevels {
	pivot := (high + low + close) / 3

	return PivotLevels{
		Pivot: pivot,
		R1:    2*pivot - low,
		R2:    pivot + (high - low),
		R3:    high + 2*(pivot-low),
		S1:    2*pivot - high,
		S2:    pivot - (high - low),
		S3:    low - 2*(high-pivot),
	}
}

// ComputePivots derives the pivot set from the most recent bar. A nil bar
// yields the all-zero set, which callers must read as "no data".
func ComputePivots(bar *models.Bar) PivotSet {
	if bar == nil {
		return PivotSet{}
	}
	raw := NewStandardPivotPoints().Calculate(bar.High, bar.Low, bar.Close)
	return PivotSet{PivotLevels: raw.rounded(), Raw: raw}
}

// ComputePivotsFromSeries uses the last bar of the series.
func ComputePivotsFromSeries(bars models.BarSeries) PivotSet {
	last, ok := bars.Last()
	if !ok {
		return PivotSet{}
	}
	return ComputePivots(&last)
}

// IsZero reports whether the set is the degraded no-data value.
func (p PivotSet) IsZero() bool {
	return p.PivotLevels == PivotLevels{}
}

// KeyLevels returns the pivot and first two supports as strong support and
// the three resistances as key resistance.
func (p PivotSet) KeyLevels() KeyLevels {
	return KeyLevels{
		StrongSupport: []float64{p.Pivot, p.S1, p.S2},
		KeyResistance: []float64{p.R1, p.R2, p.R3},
	}
}

func (l PivotLevels) rounded() PivotLevels {
	return PivotLevels{
		Pivot: Round2(l.Pivot),
		R1:    Round2(l.R1),
		R2:    Round2(l.R2),
		R3:    Round2(l.R3),
		S1:    Round2(l.S1),
		S2:    Round2(l.S2),
		S3:    Round2(l.S3),
	}
}
