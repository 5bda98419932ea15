package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"quorum/internal/domain"
)

// FieldError names one invalid parameter field and the reason it failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every failed field of one tool call.
type ValidationError struct {
	ToolID string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid parameters for tool %q:", e.ToolID)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "\n  - %s: %s", f.Field, f.Reason)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return domain.ErrInvalidParams }

// compileSchema compiles a parameter schema into a structural validator.
// A nil schema compiles to a nil validator (no validation).
func compileSchema(toolID string, params *domain.ObjectSchema) (*jsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %q: %w", toolID, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", toolID, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", toolID, err)
	}
	return compiled, nil
}

// validateParams checks raw against the compiled schema and flattens the
// result to one FieldError per failing field.
func validateParams(toolID string, compiled *jsonschema.Schema, raw json.RawMessage) error {
	if compiled == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &ValidationError{ToolID: toolID, Fields: []FieldError{
			{Field: "(parameters)", Reason: "not valid JSON: " + err.Error()},
		}}
	}
	err := compiled.Validate(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{ToolID: toolID, Fields: []FieldError{
			{Field: "(parameters)", Reason: err.Error()},
		}}
	}
	fields := flattenCauses(ve, nil)
	if len(fields) == 0 {
		fields = []FieldError{{Field: fieldName(ve.InstanceLocation), Reason: ve.Message}}
	}
	return &ValidationError{ToolID: toolID, Fields: fields}
}

// flattenCauses walks the validation error tree and collects leaf causes,
// which carry the most specific per-field messages.
func flattenCauses(ve *jsonschema.ValidationError, acc []FieldError) []FieldError {
	if len(ve.Causes) == 0 {
		return append(acc, FieldError{Field: fieldName(ve.InstanceLocation), Reason: ve.Message})
	}
	for _, c := range ve.Causes {
		acc = flattenCauses(c, acc)
	}
	return acc
}

func fieldName(instanceLocation string) string {
	name := strings.TrimPrefix(instanceLocation, "/")
	if name == "" {
		return "(root)"
	}
	return strings.ReplaceAll(name, "/", ".")
}
