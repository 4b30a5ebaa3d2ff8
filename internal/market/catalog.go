// Package market fetches OHLCV bars from Alpaca, with synthetic fallback,
// caching and circuit breaking, and maps dashboard periods to fetch ranges.
package market

import (
	"strings"

	"market-dashboard/internal/models"
)

// Entry is one listed instrument.
type Entry struct {
	Name   string `json:"name"`
	Symbol string `json:"ticker"`
}

// Category groups instruments shown together on the dashboard.
type Category struct {
	Name       string
	AssetClass models.AssetClass
	Entries    []Entry
}

// Catalog is the ordered list of dashboard categories.
type Catalog struct {
	categories []Category
}

// DefaultCatalog returns the instruments the dashboard lists.
func DefaultCatalog() *Catalog {
	return &Catalog{categories: []Category{
		{
			Name:       "indices",
			AssetClass: models.AssetIndex,
			Entries: []Entry{
				{"S&P 500", "SPY"},
				{"NASDAQ", "QQQ"},
				{"Dow Jones", "DIA"},
				{"Russell 2000", "IWM"},
				{"S&P 400 Mid Cap", "MDY"},
				{"S&P 600 Small Cap", "SLY"},
				{"NASDAQ 100", "QQQ"},
				{"Dow Jones Transport", "IYT"},
				{"Dow Jones Utilities", "IDU"},
				{"Vanguard Total Stock", "VTI"},
			},
		},
		{
			Name:       "crypto",
			AssetClass: models.AssetCrypto,
			Entries: []Entry{
				{"Bitcoin", "BTC/USD"},
				{"Ethereum", "ETH/USD"},
				{"Solana", "SOL/USD"},
				{"Bitcoin Cash", "BCH/USD"},
				{"Litecoin", "LTC/USD"},
				{"Cardano", "ADA/USD"},
				{"Dogecoin", "DOGE/USD"},
				{"Polygon", "MATIC/USD"},
				{"Avalanche", "AVAX/USD"},
				{"Chainlink", "LINK/USD"},
			},
		},
		{
			Name:       "stocks",
			AssetClass: models.AssetStock,
			Entries: []Entry{
				{"Apple", "AAPL"},
				{"Tesla", "TSLA"},
				{"Microsoft", "MSFT"},
				{"Amazon", "AMZN"},
				{"Google", "GOOGL"},
				{"Meta", "META"},
				{"Nvidia", "NVDA"},
				{"Netflix", "NFLX"},
				{"Berkshire", "BRK.B"},
				{"JP Morgan", "JPM"},
			},
		},
		{
			Name:       "forex",
			AssetClass: models.AssetForex,
			Entries: []Entry{
				{"EUR/USD", "EURUSD=X"},
				{"GBP/USD", "GBPUSD=X"},
				{"USD/JPY", "USDJPY=X"},
				{"USD/CHF", "USDCHF=X"},
				{"AUD/USD", "AUDUSD=X"},
			},
		},
		{
			Name:       "commodities",
			AssetClass: models.AssetCommodity,
			Entries: []Entry{
				{"Gold", "GLD"},
				{"Silver", "SLV"},
				{"Crude Oil", "CL=F"},
				{"Natural Gas", "NG=F"},
				{"Copper", "HG=F"},
			},
		},
	}}
}

// Categories returns the category names in display order.
func (c *Catalog) Categories() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Category returns the named category.
func (c *Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Tickers maps display names to symbols for a category.
func (c *Catalog) Tickers(name string) (map[string]string, bool) {
	cat, ok := c.Category(name)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(cat.Entries))
	for _, e := range cat.Entries {
		out[e.Name] = e.Symbol
	}
	return out, true
}

// NameOf returns the display name of a listed symbol.
func (c *Catalog) NameOf(symbol string) string {
	for _, cat := range c.categories {
		for _, e := range cat.Entries {
			if e.Symbol == symbol {
				return e.Name
			}
		}
	}
	return ""
}

var fiat = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CHF": true, "AUD": true, "CAD": true, "NZD": true,
}

// AssetClassOf infers the asset class of a symbol. Listed symbols take
// their category's class; otherwise suffixes and pair notation decide,
// defaulting to stock.
func (c *Catalog) AssetClassOf(symbol string) models.AssetClass {
	s := models.NormalizeSymbol(symbol)
	for _, cat := range c.categories {
		for _, e := range cat.Entries {
			if e.Symbol == s {
				return cat.AssetClass
			}
		}
	}

	switch {
	case strings.HasSuffix(s, "=X"):
		return models.AssetForex
	case strings.HasSuffix(s, "=F"):
		return models.AssetCommodity
	case strings.HasPrefix(s, "^"):
		return models.AssetIndex
	}

	if base, quote, ok := strings.Cut(s, "/"); ok {
		if fiat[base] && fiat[quote] {
			return models.AssetForex
		}
		return models.AssetCrypto
	}
	return models.AssetStock
}
