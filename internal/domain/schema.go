package domain

import (
	"fmt"
	"strings"
)

// SchemaNode is one variant of a tool parameter schema. The set of variants
// is closed: StringNode, NumberNode, IntegerNode, BooleanNode, EnumNode,
// ArrayNode and ObjectSchema. Each variant renders its own one-line synopsis
// for the model-facing registry description and its own JSON Schema fragment
// for the structural validator.
type SchemaNode interface {
	// Synopsis returns a coarse human-readable type tag, e.g. "number" or
	// "one of [add, sub]".
	Synopsis() string
	// JSONSchema returns the node as a JSON Schema fragment.
	JSONSchema() map[string]any
}

// StringNode accepts any string value.
type StringNode struct{}

func (StringNode) Synopsis() string           { return "string" }
func (StringNode) JSONSchema() map[string]any { return map[string]any{"type": "string"} }

// NumberNode accepts any numeric value.
type NumberNode struct{}

func (NumberNode) Synopsis() string           { return "number" }
func (NumberNode) JSONSchema() map[string]any { return map[string]any{"type": "number"} }

// IntegerNode accepts whole numbers only.
type IntegerNode struct{}

func (IntegerNode) Synopsis() string           { return "integer" }
func (IntegerNode) JSONSchema() map[string]any { return map[string]any{"type": "integer"} }

// BooleanNode accepts true or false.
type BooleanNode struct{}

func (BooleanNode) Synopsis() string           { return "boolean" }
func (BooleanNode) JSONSchema() map[string]any { return map[string]any{"type": "boolean"} }

// EnumNode accepts one of a fixed set of string options.
type EnumNode struct {
	Options []string
}

func (e EnumNode) Synopsis() string {
	return "one of [" + strings.Join(e.Options, ", ") + "]"
}

func (e EnumNode) JSONSchema() map[string]any {
	opts := make([]any, len(e.Options))
	for i, o := range e.Options {
		opts[i] = o
	}
	return map[string]any{"type": "string", "enum": opts}
}

// ArrayNode accepts a sequence of elements described by Elem.
type ArrayNode struct {
	Elem SchemaNode
}

func (a ArrayNode) Synopsis() string {
	return "array of " + a.Elem.Synopsis()
}

func (a ArrayNode) JSONSchema() map[string]any {
	return map[string]any{"type": "array", "items": a.Elem.JSONSchema()}
}

// Field is one named property of an ObjectSchema.
type Field struct {
	Name        string
	Description string
	Type        SchemaNode
	Required    bool
}

// ObjectSchema is the root (and nested-object) schema variant: a fixed set
// of named, typed fields. A nil *ObjectSchema means the tool takes no
// parameters.
type ObjectSchema struct {
	Fields []Field
}

// Object builds an ObjectSchema from fields, preserving declaration order.
func Object(fields ...Field) *ObjectSchema {
	return &ObjectSchema{Fields: fields}
}

func (o *ObjectSchema) Synopsis() string { return "object" }

func (o *ObjectSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(o.Fields))
	var required []any
	for _, f := range o.Fields {
		frag := f.Type.JSONSchema()
		if f.Description != "" {
			frag["description"] = f.Description
		}
		props[f.Name] = frag
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// Describe renders a best-effort parameter synopsis, one line per field:
// name, coarse type tag, enum options if applicable, required/optional.
func (o *ObjectSchema) Describe() string {
	if o == nil || len(o.Fields) == 0 {
		return "  (no parameters)\n"
	}
	var b strings.Builder
	for _, f := range o.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  - %s (%s, %s)", f.Name, f.Type.Synopsis(), req)
		if f.Description != "" {
			b.WriteString(": ")
			b.WriteString(f.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
