package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores a value of T as JSON text. A NULL column scans into the zero
// value with Valid=false.
type JSON[T any] struct {
	V     T
	Valid bool
}

// NewJSON wraps v for persistence.
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{V: v, Valid: true}
}

// Scan implements sql.Scanner for JSON.
func (j *JSON[T]) Scan(src any) error {
	var zero T
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("JSON: %w", err)
	}
	if len(data) == 0 {
		j.V, j.Valid = zero, false
		return nil
	}
	if err := json.Unmarshal(data, &j.V); err != nil {
		return err
	}
	j.Valid = true
	return nil
}

// Value implements driver.Valuer for JSON.
func (j JSON[T]) Value() (driver.Value, error) {
	if !j.Valid {
		return nil, nil
	}
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// RawJSON stores an opaque JSON payload without decoding it.
type RawJSON json.RawMessage

// Scan implements sql.Scanner for RawJSON.
func (r *RawJSON) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("RawJSON: %w", err)
	}
	if len(data) == 0 {
		*r = nil
		return nil
	}
	*r = append((*r)[:0], data...)
	return nil
}

// Value implements driver.Valuer for RawJSON.
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("RawJSON: invalid payload")
	}
	return string(r), nil
}

func jsonBytes(src any) ([]byte, error) {
	switch data := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return data, nil
	case string:
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("unsupported src type %T", src)
	}
}
