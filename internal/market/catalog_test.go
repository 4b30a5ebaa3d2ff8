package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/models"
)

func TestCatalogCategories(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"indices", "crypto", "stocks", "forex", "commodities"}, c.Categories())

	tickers, ok := c.Tickers("crypto")
	require.True(t, ok)
	assert.Equal(t, "BTC/USD", tickers["Bitcoin"])

	_, ok = c.Tickers("bonds")
	assert.False(t, ok)

	assert.Equal(t, "Apple", c.NameOf("AAPL"))
	assert.Empty(t, c.NameOf("ZZZZ"))
}

func TestAssetClassOf(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		symbol   string
		expected models.AssetClass
	}{
		{"SPY", models.AssetIndex},
		{"btc-usd", models.AssetCrypto},
		{"XRP/USD", models.AssetCrypto},
		{"EURUSD=X", models.AssetForex},
		{"NZDJPY=X", models.AssetForex},
		{"EUR/GBP", models.AssetForex},
		{"GLD", models.AssetCommodity},
		{"ZC=F", models.AssetCommodity},
		{"^VIX", models.AssetIndex},
		{"aapl", models.AssetStock},
		{"PLTR", models.AssetStock},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, c.AssetClassOf(tt.symbol), tt.symbol)
	}
}

func TestCleanSymbol(t *testing.T) {
	assert.Equal(t, "VIX", CleanSymbol("^vix"))
	assert.Equal(t, "EURUSD", CleanSymbol("EURUSD=X"))
	assert.Equal(t, "CL", CleanSymbol("CL=F"))
	assert.Equal(t, "ETH/USD", CleanSymbol("eth-usd"))
}
