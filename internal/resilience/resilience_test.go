package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "market-dashboard/internal/errors"
)

type recordingListener struct {
	mu     sync.Mutex
	states map[string]int
}

func (l *recordingListener) BreakerStateChanged(name string, state int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states == nil {
		l.states = make(map[string]int)
	}
	l.states[name] = state
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	listener := &recordingListener{}
	reg := NewBreakerRegistry(DefaultBreakerConfig(), zerolog.Nop(), listener)
	boom := errors.New("upstream down")

	for i := 0; i < 5; i++ {
		_, err := Execute(context.Background(), reg, "alpaca:stock", func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}

	_, err := Execute(context.Background(), reg, "alpaca:stock", func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, 2, listener.states["alpaca:stock"])

	v, err := Execute(context.Background(), reg, "alpaca:crypto", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	status := reg.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "alpaca:crypto", status[0].Name)
	assert.Equal(t, "open", status[1].State)
}

func TestBreakerIgnoresMissingData(t *testing.T) {
	reg := NewBreakerRegistry(DefaultBreakerConfig(), zerolog.Nop(), nil)

	for i := 0; i < 10; i++ {
		_, err := Execute(context.Background(), reg, "alpaca:stock", func() (int, error) {
			return 0, apperrors.ErrNoData
		})
		assert.ErrorIs(t, err, apperrors.ErrNoData)
	}
	assert.Equal(t, "closed", reg.Status()[0].State)
}

func TestExecuteCancelledContext(t *testing.T) {
	reg := NewBreakerRegistry(DefaultBreakerConfig(), zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Execute(ctx, reg, "llm", func() (string, error) {
		called = true
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterComponent("database", DatabaseHealthCheck(func(context.Context) error { return nil }))
	h.RegisterComponent("llm", StaticHealthCheck(HealthStatusDegraded, "not configured"))

	health := h.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	require.Len(t, health.Components, 2)
	assert.Equal(t, "database", health.Components[0].Name)

	h.RegisterComponent("broken", func(context.Context) ComponentHealth { panic("bad check") })
	health = h.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Contains(t, health.Components[0].Message, "Panic recovered")
}

func TestBreakerHealthCheck(t *testing.T) {
	reg := NewBreakerRegistry(DefaultBreakerConfig(), zerolog.Nop(), nil)
	check := BreakerHealthCheck(reg)
	assert.Equal(t, HealthStatusHealthy, check(context.Background()).Status)

	for i := 0; i < 5; i++ {
		_, _ = Execute(context.Background(), reg, "alpaca:crypto", func() (int, error) { return 0, errors.New("x") })
	}
	assert.Equal(t, HealthStatusDegraded, check(context.Background()).Status)
}
