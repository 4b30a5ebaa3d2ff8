// Package indicators provides technical indicator calculations with parallel processing.
//
// Every series returned by this package has the same length as its input.
// Indices without enough history hold math.NaN().
package indicators

import (
	"context"
	"sort"
	"sync"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Name() string
	Calculate(bars models.BarSeries) ([]float64, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(bars models.BarSeries) (map[string][]float64, error)
	Period() int
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers     int
	indicators  map[string]Indicator
	multiIndics map[string]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[string]Indicator),
		multiIndics: make(map[string]MultiValueIndicator),
	}
}

// NewDefaultEngine returns an engine with the dashboard indicator set
// registered.
func NewDefaultEngine(workers int) *Engine {
	e := NewEngine(workers)
	e.RegisterIndicator(NewSMA(20))
	e.RegisterIndicator(NewSMA(50))
	e.RegisterIndicator(NewSMA(200))
	e.RegisterIndicator(NewEMA(12))
	e.RegisterIndicator(NewEMA(26))
	e.RegisterIndicator(NewRSI(14))
	e.RegisterIndicator(NewATR(14))
	e.RegisterIndicator(NewATRPercent(14))
	e.RegisterIndicator(NewOBV())
	e.RegisterMultiIndicator(NewBollingerBands(20, 2))
	e.RegisterMultiIndicator(NewMACD(12, 26, 9))
	e.RegisterMultiIndicator(NewADX(14))
	return e
}

// RegisterIndicator registers a single-value indicator.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiIndics[ind.Name()] = ind
}

// CalculateAll calculates all registered indicators in parallel. Indicators
// that fail are left out of the result.
func (e *Engine) CalculateAll(ctx context.Context, bars models.BarSeries) (map[string][]float64, map[string]map[string][]float64, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	multiIndics := make([]MultiValueIndicator, 0, len(e.multiIndics))
	for _, ind := range e.multiIndics {
		multiIndics = append(multiIndics, ind)
	}
	e.mu.RUnlock()

	singleResults := make(map[string][]float64)
	multiResults := make(map[string]map[string][]float64)
	var mu sync.Mutex
	var wg sync.WaitGroup

	singleWork := make(chan Indicator, len(indicators))
	multiWork := make(chan MultiValueIndicator, len(multiIndics))

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range singleWork {
				select {
				case <-ctx.Done():
					return
				default:
					values, err := ind.Calculate(bars)
					if err == nil {
						mu.Lock()
						singleResults[ind.Name()] = values
						mu.Unlock()
					}
				}
			}
		}()
	}

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range multiWork {
				select {
				case <-ctx.Done():
					return
				default:
					values, err := ind.Calculate(bars)
					if err == nil {
						mu.Lock()
						multiResults[ind.Name()] = values
						mu.Unlock()
					}
				}
			}
		}()
	}

	for _, ind := range indicators {
		singleWork <- ind
	}
	close(singleWork)

	for _, ind := range multiIndics {
		multiWork <- ind
	}
	close(multiWork)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return singleResults, multiResults, nil
}

// Calculate calculates a specific indicator by name.
func (e *Engine) Calculate(ctx context.Context, name string, bars models.BarSeries) ([]float64, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewValidationError("indicator", name, "unknown indicator")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(bars)
	}
}

// CalculateMulti calculates a specific multi-value indicator by name.
func (e *Engine) CalculateMulti(ctx context.Context, name string, bars models.BarSeries) (map[string][]float64, error) {
	e.mu.RLock()
	ind, ok := e.multiIndics[name]
	e.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewValidationError("indicator", name, "unknown indicator")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(bars)
	}
}

// Lookup calculates one registered indicator of either kind. A
// single-value result is keyed by the indicator name.
func (e *Engine) Lookup(ctx context.Context, name string, bars models.BarSeries) (map[string][]float64, error) {
	e.mu.RLock()
	_, single := e.indicators[name]
	e.mu.RUnlock()

	if !single {
		return e.CalculateMulti(ctx, name, bars)
	}
	values, err := e.Calculate(ctx, name, bars)
	if err != nil {
		return nil, err
	}
	return map[string][]float64{name: values}, nil
}

// Compute runs every registered indicator and flattens the results into a
// bundle. Multi-value outputs are stored under their own keys.
func (e *Engine) Compute(ctx context.Context, bars models.BarSeries) (*Bundle, error) {
	single, multi, err := e.CalculateAll(ctx, bars)
	if err != nil {
		return nil, err
	}

	bundle := newBundle(bars)
	for name, values := range single {
		bundle.series[name] = values
	}
	for _, values := range multi {
		for key, series := range values {
			bundle.series[key] = series
		}
	}
	return bundle, nil
}

// ListIndicators returns the sorted names of all registered single-value indicators.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators))
	for name := range e.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMultiIndicators returns the sorted names of all registered multi-value indicators.
func (e *Engine) ListMultiIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.multiIndics))
	for name := range e.multiIndics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
