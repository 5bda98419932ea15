package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"quorum/internal/domain"
)

// RateLimitedTool wraps a tool with a token-bucket execution cap. A call
// over the limit returns an IsError result rather than an error, so the
// agent loop folds it back to the model as a correctable signal.
type RateLimitedTool struct {
	inner   domain.Tool
	limiter *rate.Limiter
}

// WithRateLimit wraps t allowing at most perMinute executions per minute,
// with a burst of one. perMinute <= 0 returns t unwrapped.
func WithRateLimit(t domain.Tool, perMinute int) domain.Tool {
	if perMinute <= 0 {
		return t
	}
	return &RateLimitedTool{
		inner:   t,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (t *RateLimitedTool) ID() string                       { return t.inner.ID() }
func (t *RateLimitedTool) Name() string                     { return t.inner.Name() }
func (t *RateLimitedTool) Description() string              { return t.inner.Description() }
func (t *RateLimitedTool) Parameters() *domain.ObjectSchema { return t.inner.Parameters() }

func (t *RateLimitedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if !t.limiter.Allow() {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("%s: tool %q called too frequently, retry later", domain.ErrRateLimit, t.inner.ID()),
		}, nil
	}
	return t.inner.Execute(ctx, params)
}
