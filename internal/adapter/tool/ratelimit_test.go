package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/domain"
)

func TestWithRateLimitDisabled(t *testing.T) {
	calc := NewCalculator()
	assert.Same(t, domain.Tool(calc), WithRateLimit(calc, 0), "non-positive rate returns the tool unwrapped")
}

func TestWithRateLimitOverLimit(t *testing.T) {
	limited := WithRateLimit(NewCalculator(), 1) // burst of 1

	params := json.RawMessage(`{"op":"add","a":1,"b":1}`)

	result, err := limited.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.IsError, "first call within burst must pass through")
	assert.Equal(t, "2", result.Content)

	result, err = limited.Execute(context.Background(), params)
	require.NoError(t, err, "a limited call is a correctable tool error, not a loop abort")
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "too frequently")
}

func TestWithRateLimitPreservesMetadata(t *testing.T) {
	calc := NewCalculator()
	limited := WithRateLimit(calc, 10)

	assert.Equal(t, calc.ID(), limited.ID())
	assert.Equal(t, calc.Name(), limited.Name())
	assert.Equal(t, calc.Parameters(), limited.Parameters())
}
