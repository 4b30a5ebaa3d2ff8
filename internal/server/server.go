// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"market-dashboard/internal/config"
	"market-dashboard/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// NewRouter creates and configures a chi router with all routes. A nil
// gatherer serves the default Prometheus registry.
func NewRouter(h *Handler, cfg config.ServerConfig, metrics *observability.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(InstrumentMiddleware(metrics, h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(CORSMiddleware(cfg.CORSOrigins))

	if gatherer == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)

		// Catalog
		r.Get("/market-categories", h.HandleCategories)
		r.Get("/tickers/{category}", h.HandleTickers)

		// Market data
		r.Get("/market-data/{ticker}", h.HandleMarketData)
		r.Get("/market-summary", h.HandleMarketSummary)

		// Analysis
		r.Get("/technical-indicators", h.HandleTechnicalIndicatorsQuery)
		r.Get("/technical-indicators/{ticker}", h.HandleTechnicalIndicators)
		r.Get("/indicators", h.HandleIndicatorList)
		r.Get("/indicators/{ticker}/{name}", h.HandleIndicator)
		r.Get("/reports/{ticker}", h.HandleReports)

		// Narrative
		r.Post("/openai-analysis", h.HandleAnalysis)
		r.Post("/copilot", h.HandleCopilot)
		r.Post("/fundamental-catalyst-summary", h.HandleCatalystSummary)
	})

	return r
}

// Server is the dashboard HTTP server.
type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// New creates a server for the handler.
func New(cfg config.ServerConfig, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting dashboard server")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down dashboard server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
