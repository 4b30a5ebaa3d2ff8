package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/models"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/security"
	"market-dashboard/internal/service"
	"market-dashboard/pkg/utils"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 200
	maxBodyBytes       = 1 << 20
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-/=^]+$`)

// Handler serves the dashboard API.
type Handler struct {
	dash   *service.Dashboard
	logger zerolog.Logger
	now    func() time.Time
}

// NewHandler creates a handler.
func NewHandler(dash *service.Dashboard, logger zerolog.Logger) *Handler {
	return &Handler{dash: dash, logger: logger, now: time.Now}
}

type envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// AnalysisRequest is the body of POST /api/openai-analysis.
type AnalysisRequest struct {
	Prompt     string         `json:"prompt"`
	Indicators map[string]any `json:"indicators"`
}

// CopilotRequest is the body of POST /api/copilot.
type CopilotRequest struct {
	Query string `json:"query"`
}

// CatalystRequest is the body of POST /api/fundamental-catalyst-summary.
type CatalystRequest struct {
	Symbol string `json:"symbol"`
}

// HandleHealth reports component health and the US market session.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.dash.Health(r.Context())

	status := http.StatusOK
	if health.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	h.jsonResponse(w, status, map[string]interface{}{
		"health":        health,
		"market_status": utils.GetMarketStatus(h.now()),
		"provider":      h.dash.ProviderName(),
		"llm_available": h.dash.Narrator().Available(),
	})
}

// HandleCategories lists the market categories in display order.
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.dash.Catalog().Categories())
}

// HandleTickers lists the instruments of one category.
func (h *Handler) HandleTickers(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	tickers, ok := h.dash.Catalog().Tickers(category)
	if !ok {
		h.jsonError(w, fmt.Sprintf("Category %s not found", category), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, http.StatusOK, tickers)
}

// HandleMarketData returns chart bars for a ticker.
func (h *Handler) HandleMarketData(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.tickerParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.dash.MarketData(r.Context(), ticker, r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, data)
}

// HandleMarketSummary returns the per-category summary.
func (h *Handler) HandleMarketSummary(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.dash.Summary(r.Context(), r.URL.Query().Get("period")))
}

// HandleTechnicalIndicators returns the technical report for the ticker in
// the path.
func (h *Handler) HandleTechnicalIndicators(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.tickerParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.technicalReport(w, r, ticker)
}

// HandleTechnicalIndicatorsQuery is HandleTechnicalIndicators with the
// ticker in the symbol query parameter.
func (h *Handler) HandleTechnicalIndicatorsQuery(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		h.jsonError(w, "Symbol parameter is required", http.StatusBadRequest)
		return
	}
	ticker := models.NormalizeSymbol(symbol)
	if err := ValidateSymbol(ticker); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.technicalReport(w, r, ticker)
}

func (h *Handler) technicalReport(w http.ResponseWriter, r *http.Request, ticker string) {
	rep, err := h.dash.TechnicalReport(r.Context(), ticker, r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, rep)
}

// HandleIndicatorList returns the registered indicator names.
func (h *Handler) HandleIndicatorList(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.dash.Indicators())
}

// HandleIndicator returns one indicator series for a ticker.
func (h *Handler) HandleIndicator(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.tickerParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.dash.Indicator(r.Context(), ticker, chi.URLParam(r, "name"), r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, data)
}

// HandleReports lists stored reports for a ticker, newest first.
func (h *Handler) HandleReports(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.tickerParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	includePayload := r.URL.Query().Get("payload") == "true"
	records, err := h.dash.RecentReports(r.Context(), ticker, ParseLimitParam(r, defaultReportLimit), includePayload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"reports": records,
		"count":   len(records),
	})
}

// HandleAnalysis answers a free-form analysis prompt.
func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	prompt, err := security.ValidateText("prompt", req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if prompt == "" {
		h.jsonError(w, "Prompt is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.dash.Narrator().TechnicalAnalysis(r.Context(), prompt, req.Indicators)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// HandleCopilot answers a natural language market question.
func (h *Handler) HandleCopilot(w http.ResponseWriter, r *http.Request) {
	var req CopilotRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	query, err := security.ValidateText("query", req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if query == "" {
		h.jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}

	resp, err := h.dash.Narrator().Copilot(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, resp)
}

// HandleCatalystSummary writes the catalyst outlook for a symbol.
func (h *Handler) HandleCatalystSummary(w http.ResponseWriter, r *http.Request) {
	var req CatalystRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		h.jsonError(w, "Symbol is required", http.StatusBadRequest)
		return
	}
	if err := ValidateSymbol(symbol); err != nil {
		h.writeError(w, r, err)
		return
	}

	rep, err := h.dash.Narrator().CatalystSummary(r.Context(), symbol)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, rep)
}

// tickerParam reads and normalizes the {ticker} path parameter. Escaped
// slashes arrive encoded, so the raw value is unescaped first.
func (h *Handler) tickerParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "ticker")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	ticker := models.NormalizeSymbol(raw)
	if err := ValidateSymbol(ticker); err != nil {
		return "", err
	}
	return ticker, nil
}

// ValidateSymbol checks a normalized ticker.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if len(symbol) > 12 {
		return apperrors.NewValidationError("symbol", symbol, "symbol too long (max 12 characters)")
	}
	if !symbolPattern.MatchString(symbol) {
		return apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return nil
}

// ParseLimitParam parses the limit query parameter, capped at
// maxReportLimit.
func ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			if l > maxReportLimit {
				return maxReportLimit
			}
			return l
		}
	}
	return defaultLimit
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("body", nil, "No data provided")
	}
	return nil
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var agentErr *apperrors.AgentError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNoData), errors.Is(err, apperrors.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrLLMUnavailable),
		errors.Is(err, apperrors.ErrProviderUnavailable),
		errors.Is(err, apperrors.ErrDatabaseError):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &agentErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		message = ve.Message
	}
	message = security.MaskSensitive(message)
	if status >= http.StatusInternalServerError {
		logger := logging.FromContext(r.Context())
		logger.Error().Str("error", message).Str("path", r.URL.Path).Msg("Request failed")
	}
	h.jsonError(w, message, status)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Status: "success", Data: data}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Status: "error", Message: message})
}
