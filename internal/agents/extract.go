package agents

import (
	"regexp"
	"strings"
)

// commonTickers are matched before the generic pattern so that pairs like
// BTC/USD survive.
var commonTickers = []string{"SPY", "AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "BTC/USD", "ETH/USD"}

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// Capitalised words that are English rather than tickers.
var notTickers = map[string]bool{"I": true, "A": true, "OK": true, "USD": true}

// ExtractJSON trims text to its outermost braces. Text without braces is
// returned trimmed.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "{"); i >= 0 {
		text = text[i:]
	}
	if j := strings.LastIndex(text, "}"); j >= 0 {
		text = text[:j+1]
	}
	return text
}

// ExtractTicker guesses the symbol a query is about, or returns "".
func ExtractTicker(query string) string {
	upper := strings.ToUpper(query)
	for _, t := range commonTickers {
		if strings.Contains(upper, t) {
			return t
		}
	}

	// Only words the user wrote in capitals count.
	for _, m := range tickerPattern.FindAllString(query, -1) {
		if !notTickers[m] {
			return m
		}
	}
	return ""
}

var timeframePeriods = map[string]string{
	"day":      "1d",
	"week":     "5d",
	"month":    "1mo",
	"3 months": "3mo",
	"quarter":  "3mo",
	"year":     "1y",
}

// PeriodForTimeframe maps a spoken timeframe to a report period. Unknown
// timeframes get one month.
func PeriodForTimeframe(timeframe string) string {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if p, ok := timeframePeriods[tf]; ok {
		return p
	}
	for _, p := range []string{"1d", "5d", "1mo", "3mo", "6mo", "ytd", "1y", "5y"} {
		if tf == p {
			return p
		}
	}
	return "1mo"
}
