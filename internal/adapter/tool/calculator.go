package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"quorum/internal/domain"
)

// CalculatorTool performs basic arithmetic. It exists mostly as the smallest
// realistic tool for exercising the loop's call/validate/execute path.
type CalculatorTool struct{}

// NewCalculator creates a calculator tool.
func NewCalculator() *CalculatorTool { return &CalculatorTool{} }

func (t *CalculatorTool) ID() string   { return "calculator" }
func (t *CalculatorTool) Name() string { return "Calculator" }
func (t *CalculatorTool) Description() string {
	return "Perform basic arithmetic on two numbers."
}

func (t *CalculatorTool) Parameters() *domain.ObjectSchema {
	return domain.Object(
		domain.Field{Name: "op", Description: "Operation to perform.", Type: domain.EnumNode{Options: []string{"add", "sub", "mul", "div"}}, Required: true},
		domain.Field{Name: "a", Description: "Left operand.", Type: domain.NumberNode{}, Required: true},
		domain.Field{Name: "b", Description: "Right operand.", Type: domain.NumberNode{}, Required: true},
	)
}

type calculatorParams struct {
	Op string  `json:"op"`
	A  float64 `json:"a"`
	B  float64 `json:"b"`
}

func (t *CalculatorTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.ID(), params, func(_ context.Context, p calculatorParams) (any, error) {
		var v float64
		switch p.Op {
		case "add":
			v = p.A + p.B
		case "sub":
			v = p.A - p.B
		case "mul":
			v = p.A * p.B
		case "div":
			if p.B == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			v = p.A / p.B
		default:
			return nil, fmt.Errorf("unknown op %q", p.Op)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	})
}
