package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"quorum/internal/domain"
	"quorum/internal/infra/tracer"
)

// ActionHandler is a function that handles a single action for a tool.
type ActionHandler[P any] func(ctx context.Context, p P) (any, error)

// ActionMap maps action names to their handlers for an action-based tool.
type ActionMap[P any] map[string]ActionHandler[P]

// Execute is the shared entry point for action-based tools: it unmarshals
// params into P, opens a span, runs the handler, and renders the result as
// a ToolResult. Handler errors become IsError results so the loop can fold
// them back to the model instead of aborting.
func Execute[P any](ctx context.Context, toolID string, params json.RawMessage, handler func(ctx context.Context, p P) (any, error)) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, "tool."+toolID)
	defer span.End()

	var p P
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			tracer.RecordError(span, err)
			return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid JSON parameters: %v", err)}, nil
		}
	}

	out, err := handler(ctx, p)
	if err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{IsError: true, Content: err.Error()}, nil
	}

	tracer.SetOK(span)
	return renderResult(out)
}

// Dispatch creates a handler for Execute[P] that routes by action name.
// The getAction function extracts the action string from the params struct.
func Dispatch[P any](getAction func(P) string, actions ActionMap[P]) func(ctx context.Context, p P) (any, error) {
	// Pre-compute sorted action names for deterministic error messages.
	validActions := make([]string, 0, len(actions))
	for name := range actions {
		validActions = append(validActions, name)
	}
	sort.Strings(validActions)

	return func(ctx context.Context, p P) (any, error) {
		action := getAction(p)
		handler, ok := actions[action]
		if !ok {
			return nil, fmt.Errorf("unknown action %q (want: %s)", action, strings.Join(validActions, ", "))
		}
		return handler(ctx, p)
	}
}

// renderResult converts a handler's return value into a ToolResult.
// Strings pass through; everything else is marshalled as indented JSON.
func renderResult(out any) (*domain.ToolResult, error) {
	switch v := out.(type) {
	case nil:
		return &domain.ToolResult{Content: "ok"}, nil
	case string:
		return &domain.ToolResult{Content: v}, nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal tool result: %w", err)
		}
		return &domain.ToolResult{Content: string(data)}, nil
	}
}
