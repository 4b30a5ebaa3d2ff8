// Package integration provides end-to-end tests of the dashboard runtime
// served over HTTP.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-dashboard/internal/config"
	"market-dashboard/internal/server"
	"market-dashboard/internal/service"
)

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func startDashboard(t *testing.T) (*httptest.Server, *service.Runtime) {
	t.Helper()

	cfg := config.Default()
	cfg.Data.Provider = "mock"
	cfg.Data.DBPath = filepath.Join(t.TempDir(), "dashboard.db")
	cfg.Analysis.Workers = 2

	rt, err := service.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to open runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	handler := server.NewHandler(rt.Dashboard, zerolog.Nop())
	srv := httptest.NewServer(server.NewRouter(handler, cfg.Server, rt.Metrics, rt.Registry))
	t.Cleanup(srv.Close)
	return srv, rt
}

func get(t *testing.T, srv *httptest.Server, path string) (int, envelope) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
	return resp.StatusCode, env
}

// TestEndToEndWorkflow walks the dashboard the way the web client does:
// categories, tickers, chart data, the technical report and its history.
func TestEndToEndWorkflow(t *testing.T) {
	srv, _ := startDashboard(t)

	// Test 1: categories in display order
	code, env := get(t, srv, "/api/market-categories")
	if code != http.StatusOK {
		t.Fatalf("categories: status %d", code)
	}
	var categories []string
	json.Unmarshal(env.Data, &categories)
	if len(categories) != 5 || categories[0] != "indices" {
		t.Errorf("unexpected categories %v", categories)
	}

	// Test 2: every category lists tickers
	for _, c := range categories {
		code, env := get(t, srv, "/api/tickers/"+c)
		if code != http.StatusOK {
			t.Errorf("tickers %s: status %d", c, code)
			continue
		}
		var tickers map[string]string
		json.Unmarshal(env.Data, &tickers)
		if len(tickers) == 0 {
			t.Errorf("tickers %s: empty", c)
		}
	}

	// Test 3: chart data for a crypto pair
	code, env = get(t, srv, "/api/market-data/ETH-USD?period=1mo")
	if code != http.StatusOK {
		t.Fatalf("market data: status %d: %s", code, env.Message)
	}
	var chart struct {
		Ticker string            `json:"ticker"`
		Prices []json.RawMessage `json:"prices"`
	}
	json.Unmarshal(env.Data, &chart)
	if chart.Ticker != "ETH/USD" || len(chart.Prices) == 0 {
		t.Errorf("unexpected chart %s with %d bars", chart.Ticker, len(chart.Prices))
	}

	// Test 4: technical report
	code, env = get(t, srv, "/api/technical-indicators/QQQ")
	if code != http.StatusOK {
		t.Fatalf("technical report: status %d: %s", code, env.Message)
	}
	var rep struct {
		ID                string `json:"id"`
		TimeframeAnalysis struct {
			Trends map[string]struct {
				Direction string `json:"direction"`
			} `json:"trends"`
			PivotPoints struct {
				Pivot float64 `json:"pivot"`
				R1    float64 `json:"r1"`
				S1    float64 `json:"s1"`
			} `json:"pivot_points"`
		} `json:"timeframe_analysis"`
	}
	json.Unmarshal(env.Data, &rep)
	if len(rep.TimeframeAnalysis.Trends) != 5 {
		t.Errorf("expected 5 timeframes, got %d", len(rep.TimeframeAnalysis.Trends))
	}
	p := rep.TimeframeAnalysis.PivotPoints
	if !(p.S1 <= p.Pivot && p.Pivot <= p.R1) {
		t.Errorf("pivot levels out of order: %+v", p)
	}

	// Test 5: the report was stored
	code, env = get(t, srv, "/api/reports/QQQ")
	if code != http.StatusOK {
		t.Fatalf("reports: status %d", code)
	}
	var history struct {
		Count   int `json:"count"`
		Reports []struct {
			ID string `json:"id"`
		} `json:"reports"`
	}
	json.Unmarshal(env.Data, &history)
	if history.Count != 1 || history.Reports[0].ID != rep.ID {
		t.Errorf("expected stored report %s, got %+v", rep.ID, history)
	}
}

// TestNarrativeWithoutModel checks the narrative endpoints degrade instead
// of failing when no model is configured.
func TestNarrativeWithoutModel(t *testing.T) {
	srv, _ := startDashboard(t)

	resp, err := srv.Client().Post(srv.URL+"/api/fundamental-catalyst-summary", "application/json",
		strings.NewReader(`{"symbol":"AAPL"}`))
	if err != nil {
		t.Fatalf("catalyst: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("catalyst: status %d: %s", resp.StatusCode, body)
	}

	resp2, err := srv.Client().Post(srv.URL+"/api/copilot", "application/json",
		strings.NewReader(`{"query":"how is AAPL doing?"}`))
	if err != nil {
		t.Fatalf("copilot: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("copilot without model: expected 503, got %d", resp2.StatusCode)
	}

	code, env := get(t, srv, "/api/health")
	if code != http.StatusOK {
		t.Fatalf("health: status %d", code)
	}
	var health struct {
		LLMAvailable bool `json:"llm_available"`
		Health       struct {
			Status string `json:"status"`
		} `json:"health"`
	}
	json.Unmarshal(env.Data, &health)
	if health.LLMAvailable {
		t.Error("llm should not be available")
	}
	if health.Health.Status != "DEGRADED" {
		t.Errorf("expected degraded health, got %q", health.Health.Status)
	}
}

// TestConcurrentReports builds reports for several symbols at once and
// checks every one is served and stored.
func TestConcurrentReports(t *testing.T) {
	srv, rt := startDashboard(t)

	symbols := []string{"AAPL", "MSFT", "BTC-USD", "SPY", "GLD", "EURUSD=X"}

	var wg sync.WaitGroup
	errs := make(chan error, len(symbols))
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			resp, err := srv.Client().Get(srv.URL + "/api/technical-indicators?symbol=" + sym)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("%s: status %d", sym, resp.StatusCode)
			}
		}(sym)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, sym := range []string{"AAPL", "BTC/USD", "EURUSD=X"} {
		records, err := rt.Dashboard.RecentReports(ctx, sym, 10, false)
		if err != nil {
			t.Fatalf("recent reports %s: %v", sym, err)
		}
		if len(records) != 1 {
			t.Errorf("%s: expected 1 stored report, got %d", sym, len(records))
		}
	}
}
