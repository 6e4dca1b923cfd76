// Package repository maps raw store documents to domain types and
// back. Mapping is explicit and schema-driven: absent optional fields
// default, absent required fields are a typed error rather than a
// silently partial object.
package repository

import (
	"errors"
	"fmt"

	"inout-backend/internal/store"
)

// ErrNotFound is re-exported so handlers do not import the store
// package for the common case.
var ErrNotFound = store.ErrNotFound

// DecodeError reports a document that does not match the expected
// shape.
type DecodeError struct {
	Collection string
	Key        string
	Field      string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s/%s: field %q missing or wrong type", e.Collection, e.Key, e.Field)
}

// IsDecodeError reports whether err is a document shape mismatch.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func getString(doc store.Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

func getOptString(doc store.Document, field string) *string {
	s, ok := doc[field].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func getBool(doc store.Document, field string) bool {
	b, _ := doc[field].(bool)
	return b
}

// getFloat tolerates the numeric types the drivers produce: float64
// from JSON, int64 from Firestore integer fields.
func getFloat(doc store.Document, field string) (float64, bool) {
	switch v := doc[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func getOptFloat(doc store.Document, field string) *float64 {
	v, ok := getFloat(doc, field)
	if !ok {
		return nil
	}
	return &v
}

func getInt64(doc store.Document, field string) int64 {
	switch v := doc[field].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func getStringSlice(doc store.Document, field string) []string {
	switch v := doc[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
