// Package trend classifies a bar series into a qualitative trend verdict.
package trend

import (
	"math"

	"market-dashboard/internal/analysis"
	"market-dashboard/internal/analysis/indicators"
	"market-dashboard/internal/models"
)

// Thresholds shared by every classifier.
const (
	strongMovePct   = 5.0
	moderateMovePct = 2.0
	volumeChangePct = 20.0
)

// Classifier compares the latest close with an earlier one and the latest
// volume window with the one before it.
type Classifier struct {
	// Lookback selects the reference close at index n-Lookback.
	Lookback int
	// MinPoints is the shortest series that gets classified.
	MinPoints int
	// VolumeWindow is the size of each compared volume window. Series
	// shorter than 2*VolumeWindow compare against the first window instead.
	VolumeWindow int
	// SMAPeriod is the moving average used for the above/below flag.
	SMAPeriod int
}

// NewClassifier returns the default classifier: five-point lookback and
// five-bar volume windows.
func NewClassifier() *Classifier {
	return &Classifier{
		Lookback:     5,
		MinPoints:    5,
		VolumeWindow: 5,
		SMAPeriod:    20,
	}
}

// NewMonthlyClassifier compares adjacent aggregates, used for monthly bars
// where only a handful of points exist.
func NewMonthlyClassifier() *Classifier {
	return &Classifier{
		Lookback:     2,
		MinPoints:    2,
		VolumeWindow: 1,
		SMAPeriod:    20,
	}
}

// Classify runs the default classifier.
func Classify(bars models.BarSeries) analysis.TrendVerdict {
	return NewClassifier().Classify(bars)
}

// Classify produces a verdict for the series. It never panics: any failure
// yields the degraded verdict.
func (c *Classifier) Classify(bars models.BarSeries) (verdict analysis.TrendVerdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = analysis.DegradedVerdict()
		}
	}()

	n := len(bars)
	if n < c.MinPoints || n < c.Lookback || c.Lookback < 2 {
		return analysis.DegradedVerdict()
	}

	recent := bars[n-1].Close
	prev := bars[n-c.Lookback].Close

	verdict = analysis.TrendVerdict{
		Direction: direction(recent, prev),
		Strength:  strength(recent, prev),
		Volume:    c.volumeTrend(bars),
	}
	verdict.IsAboveSMA20 = c.isAboveSMA(bars)
	return verdict
}

// direction treats an unchanged close as bearish.
func direction(recent, prev float64) analysis.Direction {
	if recent > prev {
		return analysis.Bullish
	}
	return analysis.Bearish
}

func strength(recent, prev float64) analysis.Strength {
	if prev == 0 || !indicators.IsDefined(prev) || !indicators.IsDefined(recent) {
		return analysis.StrengthWeak
	}
	pct := math.Abs(recent-prev) / prev * 100
	switch {
	case pct > strongMovePct:
		return analysis.StrengthStrong
	case pct > moderateMovePct:
		return analysis.StrengthModerate
	default:
		return analysis.StrengthWeak
	}
}

func (c *Classifier) volumeTrend(bars models.BarSeries) analysis.VolumeTrend {
	w := c.VolumeWindow
	n := len(bars)
	if w <= 0 || n <= w {
		return analysis.VolumeSteady
	}

	volumes := bars.Volumes()
	recentAvg := average(volumes[n-w:])
	prevAvg := average(volumes[:w])
	if n >= 2*w {
		prevAvg = average(volumes[n-2*w : n-w])
	}
	if prevAvg == 0 || !indicators.IsDefined(prevAvg) || !indicators.IsDefined(recentAvg) {
		return analysis.VolumeSteady
	}

	change := (recentAvg - prevAvg) / prevAvg * 100
	switch {
	case change > volumeChangePct:
		return analysis.VolumeIncreasing
	case change < -volumeChangePct:
		return analysis.VolumeDecreasing
	default:
		return analysis.VolumeSteady
	}
}

// isAboveSMA is nil while the moving average is still undefined.
func (c *Classifier) isAboveSMA(bars models.BarSeries) *bool {
	sma := indicators.CalculateSMA(bars.Closes(), c.SMAPeriod)
	latest := indicators.Last(sma)
	if !indicators.IsDefined(latest) {
		return nil
	}
	above := bars[len(bars)-1].Close > latest
	return &above
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
