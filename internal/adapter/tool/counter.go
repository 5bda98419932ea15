package tool

import (
	"context"
	"encoding/json"

	"quorum/internal/domain"
	"quorum/internal/usecase"
)

type counterParams struct {
	Action    string `json:"action"`
	CounterID string `json:"counter_id"`
	Value     int64  `json:"value"`
	Delta     int64  `json:"delta"`
}

// CounterTool proxies counter operations.
type CounterTool struct {
	manager *usecase.CounterManager
	actions ActionMap[counterParams]
}

// NewCounterTool creates the counter proxy tool.
func NewCounterTool(manager *usecase.CounterManager) *CounterTool {
	t := &CounterTool{manager: manager}
	t.actions = ActionMap[counterParams]{
		"init":      t.init,
		"increment": t.increment,
		"decrement": t.decrement,
		"get":       t.get,
	}
	return t
}

func (t *CounterTool) ID() string   { return "counter" }
func (t *CounterTool) Name() string { return "Counter" }

func (t *CounterTool) Description() string {
	return "Manage a persistent counter: init, increment, decrement, get."
}

func (t *CounterTool) Parameters() *domain.ObjectSchema {
	return domain.Object(
		domain.Field{Name: "action", Type: domain.EnumNode{Options: []string{
			"init", "increment", "decrement", "get",
		}}, Required: true, Description: "Operation to perform."},
		domain.Field{Name: "counter_id", Type: domain.StringNode{}, Description: "Counter identity. Empty on init generates one."},
		domain.Field{Name: "value", Type: domain.IntegerNode{}, Description: "Initial value (init)."},
		domain.Field{Name: "delta", Type: domain.IntegerNode{}, Description: "Step size, default 1 (increment, decrement)."},
	)
}

func (t *CounterTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.ID(), params, Dispatch(func(p counterParams) string { return p.Action }, t.actions))
}

func (t *CounterTool) init(ctx context.Context, p counterParams) (any, error) {
	return t.manager.Initialize(ctx, p.CounterID, p.Value)
}

func (t *CounterTool) increment(ctx context.Context, p counterParams) (any, error) {
	return t.manager.Increment(ctx, p.CounterID, stepOrDefault(p.Delta))
}

func (t *CounterTool) decrement(ctx context.Context, p counterParams) (any, error) {
	return t.manager.Decrement(ctx, p.CounterID, stepOrDefault(p.Delta))
}

func (t *CounterTool) get(ctx context.Context, p counterParams) (any, error) {
	return t.manager.Get(ctx, p.CounterID)
}

func stepOrDefault(delta int64) int64 {
	if delta == 0 {
		return 1
	}
	return delta
}
