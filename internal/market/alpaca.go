package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// alpacaDataClient is the subset of the Alpaca market data client in use.
type alpacaDataClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// AlpacaProvider fetches bars from Alpaca. Stocks, index ETFs and
// commodity proxies use the IEX feed; crypto uses the crypto endpoint.
type AlpacaProvider struct {
	client alpacaDataClient
}

// NewAlpacaProvider creates a provider with API credentials.
func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

// Name returns the provider name.
func (p *AlpacaProvider) Name() string {
	return "alpaca"
}

// GetBars fetches bars for the request. Forex is unsupported.
func (p *AlpacaProvider) GetBars(ctx context.Context, req models.HistoricalRequest) (models.BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeframe := toTimeFrame(req.Interval)
	symbol := CleanSymbol(req.Symbol)

	var (
		bars models.BarSeries
		err  error
	)
	switch req.AssetClass {
	case models.AssetForex:
		return nil, apperrors.NewProviderError(p.Name(), req.Symbol, apperrors.ErrUnsupportedAsset)
	case models.AssetCrypto:
		bars, err = p.cryptoBars(symbol, timeframe, req)
	default:
		bars, err = p.stockBars(symbol, timeframe, req)
	}
	if err != nil {
		return nil, apperrors.NewProviderError(p.Name(), req.Symbol, err)
	}
	if len(bars) == 0 {
		return nil, apperrors.NewProviderError(p.Name(), req.Symbol, apperrors.ErrNoData)
	}
	return bars, nil
}

func (p *AlpacaProvider) stockBars(symbol string, tf marketdata.TimeFrame, req models.HistoricalRequest) (models.BarSeries, error) {
	raw, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     req.From,
		End:       req.To,
		Feed:      marketdata.IEX,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	bars := make(models.BarSeries, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, models.Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return bars, nil
}

func (p *AlpacaProvider) cryptoBars(symbol string, tf marketdata.TimeFrame, req models.HistoricalRequest) (models.BarSeries, error) {
	raw, err := p.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     req.From,
		End:       req.To,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto bars for %s: %w", symbol, err)
	}

	bars := make(models.BarSeries, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, models.Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return bars, nil
}

func toTimeFrame(interval models.BarInterval) marketdata.TimeFrame {
	switch interval {
	case models.IntervalMinute:
		return marketdata.OneMin
	case models.IntervalHour:
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// CleanSymbol strips the Yahoo-style markers ("^", "=X", "=F") that Alpaca
// does not understand.
func CleanSymbol(symbol string) string {
	s := models.NormalizeSymbol(symbol)
	s = strings.TrimPrefix(s, "^")
	s = strings.TrimSuffix(s, "=X")
	s = strings.TrimSuffix(s, "=F")
	return s
}
