package service

import "testing"

func TestSchemaValidate(t *testing.T) {
	schema := &Schema{Fields: map[string]FieldSpec{
		"text":  {Type: FieldString, Required: true},
		"count": {Type: FieldNumber},
		"flags": {Type: FieldObject},
	}}

	if verr := schema.Validate(map[string]any{"text": "hi", "count": float64(3)}); verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}

	verr := schema.Validate(map[string]any{"count": float64(3)})
	if verr == nil || verr.Field != "text" {
		t.Fatalf("expected missing text error, got %v", verr)
	}

	verr = schema.Validate(map[string]any{"text": 42})
	if verr == nil || verr.Field != "text" || verr.Expected != "string" {
		t.Fatalf("expected type error on text, got %v", verr)
	}

	verr = schema.Validate(map[string]any{"text": "hi", "flags": "not an object"})
	if verr == nil || verr.Field != "flags" {
		t.Fatalf("expected type error on flags, got %v", verr)
	}
}

func TestSchemaNilPasses(t *testing.T) {
	var schema *Schema
	if verr := schema.Validate(map[string]any{"anything": true}); verr != nil {
		t.Fatalf("nil schema must accept anything, got %v", verr)
	}
}

func TestSchemaUndeclaredFieldsPass(t *testing.T) {
	schema := &Schema{Fields: map[string]FieldSpec{"text": {Type: FieldString, Required: true}}}
	if verr := schema.Validate(map[string]any{"text": "hi", "extra": []any{1, 2}}); verr != nil {
		t.Fatalf("undeclared fields must pass through, got %v", verr)
	}
}

func TestSchemaAnyType(t *testing.T) {
	schema := &Schema{Fields: map[string]FieldSpec{"payload": {Type: FieldAny, Required: true}}}
	for _, v := range []any{"s", float64(1), true, map[string]any{}, []any{}} {
		if verr := schema.Validate(map[string]any{"payload": v}); verr != nil {
			t.Fatalf("any must accept %T, got %v", v, verr)
		}
	}
}
