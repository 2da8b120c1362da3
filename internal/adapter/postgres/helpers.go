package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// notFoundWrap checks whether err is pgx.ErrNoRows and, if so, wraps
// sentinel with the given message. Otherwise it wraps the original error.
func notFoundWrap(err, sentinel error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// marshalJSONB serializes a value for a JSONB column, mapping nil maps to
// SQL NULL rather than the string "null".
func marshalJSONB(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
