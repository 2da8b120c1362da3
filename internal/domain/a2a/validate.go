package a2a

import (
	"fmt"
	"strconv"
)

// ValidationError describes a failed boundary check: the field path that
// failed and the shape that was expected. It is returned as a value so call
// sites can convert it into a protocol-level error response; it is never
// raised as a panic.
type ValidationError struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Got      string `json:"got,omitempty"`
}

func newValidationError(field, expected, got string) *ValidationError {
	return &ValidationError{Field: field, Expected: expected, Got: got}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("%s: expected %s", e.Field, e.Expected)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Field, e.Expected, e.Got)
}

// prefixed rewrites the field path as <prefix>[<index>].<field>, replacing
// the leading segment of the existing path.
func (e *ValidationError) prefixed(prefix string, index int) *ValidationError {
	return &ValidationError{
		Field:    prefix + "[" + strconv.Itoa(index) + "]." + stripHead(e.Field),
		Expected: e.Expected,
		Got:      e.Got,
	}
}

// under nests the field path below a parent segment.
func (e *ValidationError) under(parent string) *ValidationError {
	return &ValidationError{
		Field:    parent + "." + e.Field,
		Expected: e.Expected,
		Got:      e.Got,
	}
}

// stripHead drops the first dotted segment, so "message.parts" nested under
// "task.history[0]" reads task.history[0].parts rather than
// task.history[0].message.parts.
func stripHead(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
