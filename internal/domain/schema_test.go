package domain

import (
	"strings"
	"testing"
)

func TestObjectSchemaDescribe(t *testing.T) {
	s := Object(
		Field{Name: "op", Description: "Operation.", Type: EnumNode{Options: []string{"add", "sub"}}, Required: true},
		Field{Name: "a", Type: NumberNode{}, Required: true},
		Field{Name: "note", Type: StringNode{}},
	)

	got := s.Describe()
	for _, want := range []string{
		"- op (one of [add, sub], required): Operation.",
		"- a (number, required)",
		"- note (string, optional)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Describe() missing %q:\n%s", want, got)
		}
	}
}

func TestObjectSchemaDescribeEmpty(t *testing.T) {
	if got := Object().Describe(); !strings.Contains(got, "no parameters") {
		t.Errorf("Describe() = %q", got)
	}
	var nilSchema *ObjectSchema
	if got := nilSchema.Describe(); !strings.Contains(got, "no parameters") {
		t.Errorf("nil Describe() = %q", got)
	}
}

func TestObjectSchemaJSONSchema(t *testing.T) {
	s := Object(
		Field{Name: "tags", Type: ArrayNode{Elem: StringNode{}}, Required: true},
		Field{Name: "count", Type: IntegerNode{}},
		Field{Name: "on", Type: BooleanNode{}},
	)

	doc := s.JSONSchema()
	if doc["type"] != "object" {
		t.Errorf("type = %v", doc["type"])
	}
	if doc["additionalProperties"] != false {
		t.Error("additionalProperties must be false")
	}

	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties = %T", doc["properties"])
	}
	tags, ok := props["tags"].(map[string]any)
	if !ok || tags["type"] != "array" {
		t.Errorf("tags fragment = %v", props["tags"])
	}

	required, ok := doc["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "tags" {
		t.Errorf("required = %v, want [tags]", doc["required"])
	}
}

func TestEnumNodeSynopsis(t *testing.T) {
	e := EnumNode{Options: []string{"x", "y"}}
	if got := e.Synopsis(); got != "one of [x, y]" {
		t.Errorf("Synopsis() = %q", got)
	}
}
