package service

import (
	"fmt"

	"github.com/nyuta01/agenthub/internal/domain/a2a"
)

// FieldType names the accepted JSON shape of one schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
	FieldAny     FieldType = "any"
)

// FieldSpec declares the expected shape of one field.
type FieldSpec struct {
	Type     FieldType
	Required bool
}

// Schema is the declarative input/output contract an executor can attach.
// Unknown fields pass through unchecked; only declared fields are narrowed.
type Schema struct {
	Fields map[string]FieldSpec
}

// Validate checks value against the schema and returns a field-path error
// for the first violation.
func (s *Schema) Validate(value map[string]any) *a2a.ValidationError {
	if s == nil {
		return nil
	}
	for name, spec := range s.Fields {
		v, ok := value[name]
		if !ok || v == nil {
			if spec.Required {
				return &a2a.ValidationError{Field: name, Expected: string(spec.Type), Got: "missing"}
			}
			continue
		}
		if !matches(spec.Type, v) {
			return &a2a.ValidationError{Field: name, Expected: string(spec.Type), Got: fmt.Sprintf("%T", v)}
		}
	}
	return nil
}

func matches(t FieldType, v any) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldObject:
		_, ok := v.(map[string]any)
		return ok
	case FieldArray:
		_, ok := v.([]any)
		return ok
	case FieldAny:
		return true
	default:
		return false
	}
}
