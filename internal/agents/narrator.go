package agents

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-dashboard/internal/analysis/report"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/internal/performance"
)

const narratorName = "narrator"

// analystSystemPrompt frames the technical commentary.
const analystSystemPrompt = "You are a professional financial analyst specializing in technical analysis of stocks and market data."

// Recorder receives language model metrics.
type Recorder interface {
	RecordLLMRequest(operation string, duration time.Duration, err error)
}

// ReportSource builds the technical report for a symbol and period.
type ReportSource func(ctx context.Context, symbol, period string) (*report.Report, error)

// SummarySource returns the market summary for a period, keyed by category.
type SummarySource func(ctx context.Context, period string) map[string][]models.Quote

// BarSource returns recent daily bars for a symbol.
type BarSource func(ctx context.Context, symbol string) (models.BarSeries, error)

// Sources are the data the narrator may pull into its prompts. Any of them
// may be nil.
type Sources struct {
	Reports   ReportSource
	Summary   SummarySource
	DailyBars BarSource
}

// Narrator turns analysis results into prose.
type Narrator struct {
	llm      LLMClient
	sources  Sources
	limiter  *performance.RateLimiter
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithSources sets the data sources.
func WithSources(s Sources) Option {
	return func(n *Narrator) { n.sources = s }
}

// WithRateLimiter throttles language model calls.
func WithRateLimiter(l *performance.RateLimiter) Option {
	return func(n *Narrator) { n.limiter = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(n *Narrator) { n.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Narrator) { n.logger = l }
}

// NewNarrator creates a narrator. A nil client makes every model call fail
// with ErrLLMUnavailable.
func NewNarrator(llm LLMClient, opts ...Option) *Narrator {
	n := &Narrator{
		llm:    llm,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Available reports whether a language model is configured.
func (n *Narrator) Available() bool {
	return n.llm != nil
}

// TechnicalAnalysis answers a free-form prompt about a symbol, with the
// indicator snapshot attached as context.
func (n *Narrator) TechnicalAnalysis(ctx context.Context, prompt string, indicators map[string]any) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperrors.NewValidationError("prompt", prompt, "prompt is required")
	}

	user := prompt
	if len(indicators) > 0 {
		data, err := json.MarshalIndent(indicators, "", "  ")
		if err != nil {
			return "", apperrors.Wrap(err, "failed to encode indicators")
		}
		user += "\n\nIndicator data:\n" + string(data)
	}

	out, err := n.call(ctx, "technical_analysis", func(ctx context.Context) (string, error) {
		return n.llm.CompleteWithSystem(ctx, analystSystemPrompt, user, CompletionOptions{Temperature: 0.7, MaxTokens: 300})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// call runs one model request through the rate limiter and records it.
func (n *Narrator) call(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	if n.llm == nil {
		return "", apperrors.NewAgentError(narratorName, op, apperrors.ErrLLMUnavailable)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return "", apperrors.NewAgentError(narratorName, op, err)
	}

	start := time.Now()
	out, err := fn(ctx)
	if n.recorder != nil {
		n.recorder.RecordLLMRequest(op, time.Since(start), err)
	}
	if err != nil {
		n.logger.Warn().Err(err).Str("operation", op).Msg("Language model request failed")
		return "", apperrors.NewAgentError(narratorName, op, err)
	}
	return out, nil
}
