package domain

import (
	"context"
	"encoding/json"
)

// Tool is the interface every registered tool must implement. Parameters
// arrive pre-validated against the tool's schema as raw JSON; tools
// unmarshal into their own parameter structs.
type Tool interface {
	// ID is the unique registry key the model uses to address the tool.
	ID() string
	Name() string
	Description() string
	// Parameters returns the tool's parameter schema. Nil means the tool
	// takes no parameters and any payload is accepted.
	Parameters() *ObjectSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolCall is a model request to invoke a tool, parsed from the first
// well-formed fenced block of an assistant turn.
type ToolCall struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

// ToolResult is the outcome of executing a tool.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// FinishToolID is the reserved identifier that ends the agent loop.
const FinishToolID = "finish"
