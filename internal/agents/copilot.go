package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"market-dashboard/internal/analysis/report"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Request types the copilot distinguishes.
const (
	RequestTechnical     = "technical"
	RequestFundamental   = "fundamental"
	RequestMarketSummary = "market_summary"
	RequestGeneral       = "general"
	RequestChat          = "chat"
)

// QueryInfo is the model's reading of a copilot query.
type QueryInfo struct {
	RequestType     string `json:"request_type"`
	Symbol          string `json:"symbol"`
	Timeframe       string `json:"timeframe"`
	Intent          string `json:"intent"`
	IsSpecificAsset bool   `json:"is_specific_asset"`
}

// IsChat reports whether the query is small talk.
func (q QueryInfo) IsChat() bool {
	return q.RequestType == RequestChat || q.Intent == "greeting" || q.Intent == "chitchat"
}

// CopilotResponse is the copilot answer plus what fed it.
type CopilotResponse struct {
	Response         string    `json:"response"`
	HasTechnical     bool      `json:"has_technical"`
	HasFundamental   bool      `json:"has_fundamental"`
	HasMarketSummary bool      `json:"has_market_summary"`
	QueryInfo        QueryInfo `json:"query_info"`
}

// Copilot answers a trading question. The query is interpreted first; small
// talk gets a short reply, anything else is answered with whatever report,
// catalyst and summary data applies.
func (n *Narrator) Copilot(ctx context.Context, query string) (*CopilotResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query", query, "query is required")
	}

	info := n.interpret(ctx, query)

	if info.IsChat() {
		reply, err := n.call(ctx, "copilot_chat", func(ctx context.Context) (string, error) {
			return n.llm.Complete(ctx, chatPrompt(query), CompletionOptions{Temperature: 0.7, MaxTokens: 100})
		})
		if err != nil {
			return nil, err
		}
		return &CopilotResponse{Response: strings.TrimSpace(reply), QueryInfo: info}, nil
	}

	specific := info.IsSpecificAsset && info.Symbol != ""
	period := PeriodForTimeframe(info.Timeframe)

	var (
		rep      *report.Report
		catalyst *CatalystReport
		summary  map[string][]models.Quote
	)
	if specific {
		rep = n.technicalContext(ctx, info.Symbol, period)
		catalyst = n.catalystContext(ctx, info.Symbol)
	}
	if info.RequestType == RequestMarketSummary && !info.IsSpecificAsset && n.sources.Summary != nil {
		summary = n.sources.Summary(ctx, period)
	}

	prompt, err := finalPrompt(query, info, rep, catalyst, summary)
	if err != nil {
		return nil, err
	}

	answer, err := n.call(ctx, "copilot_answer", func(ctx context.Context) (string, error) {
		return n.llm.Complete(ctx, prompt, CompletionOptions{Temperature: 0.7, MaxTokens: 200})
	})
	if err != nil {
		return nil, err
	}

	return &CopilotResponse{
		Response:         strings.TrimSpace(answer),
		HasTechnical:     specific,
		HasFundamental:   specific,
		HasMarketSummary: len(summary) > 0,
		QueryInfo:        info,
	}, nil
}

// interpret asks the model for the query intent. Unusable replies fall back
// to a general intent around any ticker found in the query.
func (n *Narrator) interpret(ctx context.Context, query string) QueryInfo {
	text, err := n.call(ctx, "copilot_interpret", func(ctx context.Context) (string, error) {
		return n.llm.CompleteJSON(ctx, DefaultSystemPrompt, interpretationPrompt(query), CompletionOptions{Temperature: 0.1, MaxTokens: 200})
	})
	if err == nil {
		var info QueryInfo
		if jsonErr := json.Unmarshal([]byte(ExtractJSON(text)), &info); jsonErr == nil && info.RequestType != "" {
			info.Symbol = models.NormalizeSymbol(info.Symbol)
			if !validRequestType(info.RequestType) {
				info.RequestType = RequestGeneral
			}
			return info
		} else if jsonErr != nil {
			err = jsonErr
		}
	}

	n.logger.Debug().Err(err).Str("query", query).Msg("Falling back to keyword interpretation")
	symbol := ExtractTicker(query)
	return QueryInfo{
		RequestType:     RequestGeneral,
		Symbol:          symbol,
		Timeframe:       "1mo",
		Intent:          "trading information",
		IsSpecificAsset: symbol != "",
	}
}

func validRequestType(t string) bool {
	switch t {
	case RequestTechnical, RequestFundamental, RequestMarketSummary, RequestGeneral, RequestChat:
		return true
	}
	return false
}

func (n *Narrator) technicalContext(ctx context.Context, symbol, period string) *report.Report {
	if n.sources.Reports == nil {
		return nil
	}
	rep, err := n.sources.Reports(ctx, symbol, period)
	if err != nil {
		n.logger.Warn().Err(err).Str("symbol", symbol).Msg("Copilot could not load technical report")
		return nil
	}
	return rep
}

func (n *Narrator) catalystContext(ctx context.Context, symbol string) *CatalystReport {
	if n.sources.DailyBars == nil {
		return nil
	}
	c, err := n.CatalystSummary(ctx, symbol)
	if err != nil {
		n.logger.Warn().Err(err).Str("symbol", symbol).Msg("Copilot could not load catalysts")
		return nil
	}
	return c
}

func interpretationPrompt(query string) string {
	return fmt.Sprintf(`You are an AI assistant for a trading platform. Analyze the user query and return ONLY a JSON object.

Query: %q

Extract:
1. request_type: one of ["technical", "fundamental", "market_summary", "general", "chat"]
2. symbol: the ticker symbol mentioned (e.g. "SPY", "BTC/USD", "AAPL") or null
3. timeframe: the time period mentioned (e.g. "day", "week", "month") or null
4. intent: brief description of the user's goal (e.g. "price prediction", "greeting")
5. is_specific_asset: true if a specific asset was mentioned

Use "chat" for casual conversation and greetings.

Examples:
"Is AAPL a good buy?" -> {"request_type": "general", "symbol": "AAPL", "timeframe": null, "intent": "investment advice", "is_specific_asset": true}
"Tell me about the market last week" -> {"request_type": "market_summary", "symbol": null, "timeframe": "week", "intent": "market overview", "is_specific_asset": false}
"Hi there" -> {"request_type": "chat", "symbol": null, "timeframe": null, "intent": "greeting", "is_specific_asset": false}`, query)
}

func chatPrompt(query string) string {
	return fmt.Sprintf(`You are a friendly trading assistant having a casual conversation.
Respond to the following message in a natural, conversational way.
Keep your response short (1-2 sentences).

Message: %q`, query)
}

func finalPrompt(query string, info QueryInfo, rep *report.Report, catalyst *CatalystReport, summary map[string][]models.Quote) (string, error) {
	var b strings.Builder

	infoJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode query info")
	}
	fmt.Fprintf(&b, "You are an experienced trading advisor. Based on the following data, provide a VERY CONCISE answer to the user's query.\n\n")
	fmt.Fprintf(&b, "USER QUERY: %q\n\nQUERY INTERPRETATION:\n%s\n", query, infoJSON)

	if rep != nil {
		sections := []struct {
			title string
			value any
		}{
			{"Timeframe Analysis", rep.TimeframeAnalysis.Trends},
			{"Key Support/Resistance Levels", rep.TimeframeAnalysis.KeyLevels},
			{"Pivot Points", rep.TimeframeAnalysis.PivotPoints},
		}
		fmt.Fprintf(&b, "\nTECHNICAL ANALYSIS:\nSymbol: %s\nOverall signal: %s\n", rep.Symbol, rep.Signals.OverallSignal)
		for _, s := range sections {
			data, err := json.MarshalIndent(s.value, "", "  ")
			if err != nil {
				return "", apperrors.Wrapf(err, "failed to encode %s", s.title)
			}
			fmt.Fprintf(&b, "\n%s:\n%s\n", s.title, data)
		}
	}

	if catalyst != nil {
		fmt.Fprintf(&b, "\nFUNDAMENTAL CATALYSTS:\n%s\n", catalyst.Analysis)
	}

	if len(summary) > 0 {
		b.WriteString("\nMARKET SUMMARY:\n")
		categories := make([]string, 0, len(summary))
		for c := range summary {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(c))
			quotes := summary[c]
			if len(quotes) > 3 {
				quotes = quotes[:3]
			}
			for _, q := range quotes {
				dir := "up"
				if q.ChangePercent < 0 {
					dir = "down"
				}
				fmt.Fprintf(&b, "- %s (%s): $%.2f %s %.2f%%\n", q.Name, q.Symbol, q.Price, dir, abs(q.ChangePercent))
			}
		}
	}

	b.WriteString(`
Based on the above information, provide:
1. A VERY BRIEF analysis (2-3 SHORT sentences) of the asset or market with key levels.
2. In ONE concise paragraph (2-3 sentences), actionable advice with potential entry/exit levels.

Keep the ENTIRE response under 100 words. Skip introductions.`)
	return b.String(), nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
