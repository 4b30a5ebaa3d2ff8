package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("period", "2w", "unknown period"), "technical report")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "technical report: validation error: period (2w)")

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "period", ve.Field)
}

func TestTypedErrorsUnwrap(t *testing.T) {
	assert.ErrorIs(t, NewDataError("bars", "AAPL", "empty response", ErrNoData), ErrNoData)
	assert.ErrorIs(t, NewProviderError("alpaca", "AAPL", ErrProviderUnavailable), ErrProviderUnavailable)
	assert.ErrorIs(t, NewAgentError("copilot", "complete", ErrLLMUnavailable), ErrLLMUnavailable)

	assert.Equal(t, "data error [bars] AAPL: empty", NewDataError("bars", "AAPL", "empty", nil).Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
	assert.EqualError(t, Wrapf(ErrTimeout, "fetch %s", "SPY"), "fetch SPY: operation timed out")
}
