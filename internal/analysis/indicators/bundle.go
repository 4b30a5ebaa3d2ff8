package indicators

import (
	"context"
	"time"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Bundle keys.
const (
	KeySMA20      = "sma20"
	KeySMA50      = "sma50"
	KeySMA200     = "sma200"
	KeyEMA12      = "ema12"
	KeyEMA26      = "ema26"
	KeyUpperBand  = "upper_band"
	KeyMiddleBand = "middle_band"
	KeyLowerBand  = "lower_band"
	KeyRSI        = "rsi"
	KeyMACD       = "macd"
	KeySignal     = "signal"
	KeyHistogram  = "histogram"
	KeyADX        = "adx"
	KeyPlusDI     = "plus_di"
	KeyMinusDI    = "minus_di"
	KeyATR        = "atr"
	KeyATRPercent = "atr_pct"
	KeyOBV        = "obv"
)

var defaultEngine = NewDefaultEngine(4)

// Bundle holds every computed indicator series for one bar series.
type Bundle struct {
	bars   models.BarSeries
	series map[string][]float64
}

func newBundle(bars models.BarSeries) *Bundle {
	return &Bundle{
		bars:   bars,
		series: make(map[string][]float64),
	}
}

// ComputeIndicators computes the full dashboard indicator set. The only
// error is apperrors.ErrNoData for an empty series.
func ComputeIndicators(bars models.BarSeries) (*Bundle, error) {
	return ComputeIndicatorsContext(context.Background(), bars)
}

// ComputeIndicatorsContext is ComputeIndicators with cancellation.
func ComputeIndicatorsContext(ctx context.Context, bars models.BarSeries) (*Bundle, error) {
	if len(bars) == 0 {
		return nil, apperrors.ErrNoData
	}
	return defaultEngine.Compute(ctx, bars)
}

// Bars returns the series the bundle was computed from.
func (b *Bundle) Bars() models.BarSeries {
	return b.bars
}

// Len returns the number of bars.
func (b *Bundle) Len() int {
	return len(b.bars)
}

// Series returns the named indicator series. Unknown names yield an
// all-undefined series of the bundle's length.
func (b *Bundle) Series(name string) []float64 {
	if s, ok := b.series[name]; ok {
		return s
	}
	return nanSeries(len(b.bars))
}

// Has reports whether the named series was computed.
func (b *Bundle) Has(name string) bool {
	_, ok := b.series[name]
	return ok
}

// Latest returns the last value of the named series.
func (b *Bundle) Latest(name string) float64 {
	return Last(b.Series(name))
}

// Prev returns the second to last value of the named series.
func (b *Bundle) Prev(name string) float64 {
	return Previous(b.Series(name))
}

// Row is one bar with its indicator values, ready for JSON. Undefined
// values are nil and serialise as null.
type Row struct {
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	SMA20      *float64  `json:"sma20"`
	SMA50      *float64  `json:"sma50"`
	SMA200     *float64  `json:"sma200"`
	EMA12      *float64  `json:"ema12"`
	EMA26      *float64  `json:"ema26"`
	UpperBand  *float64  `json:"upper_band"`
	MiddleBand *float64  `json:"middle_band"`
	LowerBand  *float64  `json:"lower_band"`
	RSI        *float64  `json:"rsi"`
	MACD       *float64  `json:"macd"`
	Signal     *float64  `json:"signal"`
	Histogram  *float64  `json:"histogram"`
	ADX        *float64  `json:"adx"`
	PlusDI     *float64  `json:"plus_di"`
	MinusDI    *float64  `json:"minus_di"`
	ATR        *float64  `json:"atr"`
	ATRPercent *float64  `json:"atr_pct"`
	OBV        *float64  `json:"obv"`
}

// Rows returns one display row per bar, rounded to two decimals.
func (b *Bundle) Rows() []Row {
	rows := make([]Row, len(b.bars))
	at := func(name string, i int) *float64 {
		return Display(b.Series(name)[i])
	}
	for i, bar := range b.bars {
		rows[i] = Row{
			Date:       bar.Timestamp,
			Open:       Round2(bar.Open),
			High:       Round2(bar.High),
			Low:        Round2(bar.Low),
			Close:      Round2(bar.Close),
			Volume:     bar.Volume,
			SMA20:      at(KeySMA20, i),
			SMA50:      at(KeySMA50, i),
			SMA200:     at(KeySMA200, i),
			EMA12:      at(KeyEMA12, i),
			EMA26:      at(KeyEMA26, i),
			UpperBand:  at(KeyUpperBand, i),
			MiddleBand: at(KeyMiddleBand, i),
			LowerBand:  at(KeyLowerBand, i),
			RSI:        at(KeyRSI, i),
			MACD:       at(KeyMACD, i),
			Signal:     at(KeySignal, i),
			Histogram:  at(KeyHistogram, i),
			ADX:        at(KeyADX, i),
			PlusDI:     at(KeyPlusDI, i),
			MinusDI:    at(KeyMinusDI, i),
			ATR:        at(KeyATR, i),
			ATRPercent: at(KeyATRPercent, i),
			OBV:        at(KeyOBV, i),
		}
	}
	return rows
}

// Display converts a value into its rounded JSON form. Undefined values
// become nil.
func Display(v float64) *float64 {
	if !IsDefined(v) {
		return nil
	}
	r := Round2(v)
	return &r
}
