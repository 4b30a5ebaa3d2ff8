package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/agents"
	"market-dashboard/internal/config"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/market"
	"market-dashboard/internal/observability"
	"market-dashboard/internal/service"
	"market-dashboard/internal/store"
)

type scriptedLLM struct {
	reply     string
	intent    string
	lastInput string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ agents.CompletionOptions) (string, error) {
	s.lastInput = prompt
	return s.reply, nil
}

func (s *scriptedLLM) CompleteWithSystem(_ context.Context, _, prompt string, _ agents.CompletionOptions) (string, error) {
	s.lastInput = prompt
	return s.reply, nil
}

func (s *scriptedLLM) CompleteJSON(context.Context, string, string, agents.CompletionOptions) (string, error) {
	return s.intent, nil
}

type testEnv struct {
	router   http.Handler
	llm      *scriptedLLM
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, withLLM bool) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "dashboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	env := &testEnv{registry: registry}
	deps := service.Deps{
		Provider: market.NewMockProvider(),
		Store:    st,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	}
	if withLLM {
		env.llm = &scriptedLLM{
			reply:  "Support is holding.",
			intent: `{"request_type":"chat","symbol":"","timeframe":"","intent":"greeting","is_specific_asset":false}`,
		}
		deps.LLM = env.llm
	}

	cfg := config.Default().Server
	handler := NewHandler(service.NewDashboard(deps), zerolog.Nop())
	env.router = NewRouter(handler, cfg, metrics, registry)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func dataOf(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", resp)
	return data
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])

	data := dataOf(t, resp)
	assert.Equal(t, "mock", data["provider"])
	assert.Equal(t, false, data["llm_available"])
	assert.Contains(t, []interface{}{"PRE_MARKET", "OPEN", "AFTER_HOURS", "CLOSED"}, data["market_status"])
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/market-categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"indices", "crypto", "stocks", "forex", "commodities"}, resp["data"])

	w, resp = env.do(t, http.MethodGet, "/api/tickers/crypto", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, dataOf(t, resp), "Bitcoin")

	w, resp = env.do(t, http.MethodGet, "/api/tickers/bonds", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "Category bonds not found", resp["message"])
}

func TestMarketData(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/market-data/SPY?period=1mo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, resp)
	assert.Equal(t, "SPY", data["ticker"])
	assert.Equal(t, "1mo", data["period"])
	assert.NotEmpty(t, data["prices"])

	for _, path := range []string{"/api/market-data/BTC-USD", "/api/market-data/BTC%2FUSD"} {
		w, resp = env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		data = dataOf(t, resp)
		assert.Equal(t, "BTC/USD", data["ticker"], path)
		assert.Equal(t, "3mo", data["period"], path)
	}

	w, resp = env.do(t, http.MethodGet, "/api/market-data/SPY?period=2w", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", resp["status"])
}

func TestMarketSummary(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/market-summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, resp)
	require.Contains(t, data, "stocks")

	first := data["stocks"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"name", "ticker", "price", "change", "changePct", "volume"} {
		assert.Contains(t, first, key)
	}
}

func TestIndicatorRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/indicators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp["data"], "obv")

	w, resp = env.do(t, http.MethodGet, "/api/indicators/BTC-USD/atr?period=1mo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, resp)
	assert.Equal(t, "BTC/USD", data["ticker"])
	assert.Equal(t, "atr", data["indicator"])
	assert.Contains(t, data["values"], "atr")

	w, resp = env.do(t, http.MethodGet, "/api/indicators/AAPL/vwap", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown indicator", resp["message"])
}

func TestTechnicalIndicators(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodGet, "/api/technical-indicators/AAPL?period=6mo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, resp)
	assert.Equal(t, "AAPL", data["ticker"])
	assert.Equal(t, "6mo", data["period"])
	assert.NotEmpty(t, data["indicators"])

	tfa := data["timeframe_analysis"].(map[string]interface{})
	for _, key := range []string{"trends", "strategies", "key_levels", "pivot_points"} {
		assert.Contains(t, tfa, key)
	}
	assert.Contains(t, data["signals"], "overall_signal")

	w, resp = env.do(t, http.MethodGet, "/api/technical-indicators?symbol=msft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MSFT", dataOf(t, resp)["ticker"])

	w, resp = env.do(t, http.MethodGet, "/api/technical-indicators", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Symbol parameter is required", resp["message"])

	w, _ = env.do(t, http.MethodGet, "/api/technical-indicators/BAD$SYM", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/reports/AAPL?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reports := dataOf(t, resp)
	assert.EqualValues(t, 1, reports["count"])
}

func TestOpenAIAnalysis(t *testing.T) {
	env := newTestEnv(t, true)

	w, resp := env.do(t, http.MethodPost, "/api/openai-analysis", map[string]interface{}{
		"prompt":     "Summarise the trend",
		"indicators": map[string]interface{}{"ticker": "SPY", "rsi": 61.2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Support is holding.", dataOf(t, resp)["analysis"])
	assert.Contains(t, env.llm.lastInput, `"rsi": 61.2`)

	w, resp = env.do(t, http.MethodPost, "/api/openai-analysis", map[string]interface{}{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Prompt is required", resp["message"])
}

func TestAnalysisWithoutModel(t *testing.T) {
	env := newTestEnv(t, false)

	w, resp := env.do(t, http.MethodPost, "/api/openai-analysis", map[string]interface{}{"prompt": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", resp["status"])
}

func TestCopilot(t *testing.T) {
	env := newTestEnv(t, true)

	w, resp := env.do(t, http.MethodPost, "/api/copilot", map[string]string{"query": "hi there"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, resp)
	assert.Equal(t, "Support is holding.", data["response"])
	assert.Equal(t, false, data["has_technical"])

	w, _ = env.do(t, http.MethodPost, "/api/copilot", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/copilot", map[string]string{"query": strings.Repeat("a", 5000)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/copilot", map[string]string{"query": "\x00\x07 \n"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalystSummary(t *testing.T) {
	env := newTestEnv(t, true)

	w, resp := env.do(t, http.MethodPost, "/api/fundamental-catalyst-summary", map[string]string{"symbol": "nvda"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, resp)
	assert.Equal(t, "NVDA", data["symbol"])
	assert.Equal(t, "Support is holding.", data["analysis"])

	w, resp = env.do(t, http.MethodPost, "/api/fundamental-catalyst-summary", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Symbol is required", resp["message"])

	req := httptest.NewRequest(http.MethodPost, "/api/fundamental-catalyst-summary", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"No data provided"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	env.do(t, http.MethodGet, "/api/market-categories", nil)

	w, _ := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "market_dashboard_http_requests_total")
	assert.Contains(t, body, `route="/api/market-categories"`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/market-summary", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	handler := CORSMiddleware([]string{"https://dash.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewValidationError("period", "2w", "bad"), http.StatusBadRequest},
		{apperrors.NewDataError("bars", "XYZ", "none", apperrors.ErrNoData), http.StatusNotFound},
		{apperrors.NewAgentError("narrator", "copilot", apperrors.ErrLLMUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("alpaca:stock: %w", apperrors.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{apperrors.NewAgentError("narrator", "copilot", errors.New("rate limited")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestParseLimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=abc", 20},
		{"limit=5000", maxReportLimit},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/reports/SPY?"+tt.query, nil)
		assert.Equal(t, tt.want, ParseLimitParam(req, 20), tt.query)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(config.ServerConfig{Addr: ln.Addr().String()}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
