package tool

import (
	"context"
	"encoding/json"

	"quorum/internal/domain"
)

// FuncTool adapts a plain function into a domain.Tool. Useful for small
// tools that do not warrant their own type.
type FuncTool struct {
	id          string
	name        string
	description string
	params      *domain.ObjectSchema
	fn          func(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error)
}

// NewFunc creates a FuncTool.
func NewFunc(
	id, name, description string,
	params *domain.ObjectSchema,
	fn func(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error),
) *FuncTool {
	return &FuncTool{id: id, name: name, description: description, params: params, fn: fn}
}

func (t *FuncTool) ID() string                       { return t.id }
func (t *FuncTool) Name() string                     { return t.name }
func (t *FuncTool) Description() string              { return t.description }
func (t *FuncTool) Parameters() *domain.ObjectSchema { return t.params }

func (t *FuncTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return t.fn(ctx, params)
}
