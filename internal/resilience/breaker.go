// Package resilience provides circuit breakers and health checks for the
// upstream market data and LLM services.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	apperrors "market-dashboard/internal/errors"
)

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32        // max requests allowed in half-open state
	Interval     time.Duration // cyclic period of the closed state to clear counts
	Timeout      time.Duration // period of the open state before transitioning to half-open
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig trips after five requests with half of them failing.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  5,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// StateListener is told about breaker transitions.
type StateListener interface {
	BreakerStateChanged(name string, state int)
}

// BreakerRegistry manages one circuit breaker per upstream name.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   BreakerConfig
	logger   zerolog.Logger
	listener StateListener
}

// NewBreakerRegistry creates a registry.
func NewBreakerRegistry(config BreakerConfig, logger zerolog.Logger, listener StateListener) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
		logger:   logger,
		listener: listener,
	}
}

// Get returns or creates the breaker for name.
func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= r.config.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Callers asking for data that does not exist are not upstream failures.
			return err == nil ||
				errors.Is(err, apperrors.ErrNoData) ||
				errors.Is(err, apperrors.ErrUnsupportedAsset) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			if r.listener != nil {
				r.listener.BreakerStateChanged(name, StateValue(to))
			}
		},
	}

	cb = gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker. An open breaker yields an
// error wrapping ErrProviderUnavailable.
func Execute[T any](ctx context.Context, r *BreakerRegistry, name string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := r.Get(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w: %v", name, apperrors.ErrProviderUnavailable, err)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// BreakerStatus is a snapshot of one breaker.
type BreakerStatus struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status returns the breakers sorted by name.
func (r *BreakerRegistry) Status() []BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BreakerStatus, 0, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		out = append(out, BreakerStatus{
			Name:                name,
			State:               cb.State().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StateValue maps a breaker state to 0 closed, 1 half-open, 2 open.
func StateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
