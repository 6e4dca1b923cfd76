// Package store defines the document-store port the attendance core
// issues its reads, writes and live subscriptions against, together
// with the firestore, postgres and in-memory drivers.
package store

import (
	"context"
	"errors"
)

// Collection names.
const (
	CollectionUsers      = "users"
	CollectionLocations  = "locations"
	CollectionAttendance = "attendance"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("document not found")

// Document is the raw shape of a stored document. Typed mapping lives
// in the repository layer.
type Document map[string]any

// Update describes one partial field mutation. When Append is set the
// value is appended to the array stored under Field (creating it if
// absent); duplicates are preserved.
type Update struct {
	Field  string
	Value  any
	Append bool
}

// Filter narrows a Query. Op is one of "==", ">=", "<=".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Event is one emission from a Watch subscription. Exists is false
// when the document is absent (including deletion after creation).
type Event struct {
	Doc    Document
	Exists bool
}

// Store is the abstract document store. All mutations are
// single-document and last-writer-wins; there are no cross-document
// transactions.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, key string) (Document, error)

	// Set overwrites the full document, creating it if absent.
	Set(ctx context.Context, collection, key string, doc Document) error

	// Update applies partial field updates to an existing document.
	Update(ctx context.Context, collection, key string, updates []Update) error

	// Delete removes the document. Deleting an absent document is not
	// an error.
	Delete(ctx context.Context, collection, key string) error

	// Query returns all documents in the collection matching every
	// filter, keyed by document key.
	Query(ctx context.Context, collection string, filters []Filter) (map[string]Document, error)

	// Watch subscribes to one document. The channel receives the
	// current state immediately and again on every change, and is
	// closed when ctx is cancelled.
	Watch(ctx context.Context, collection, key string) (<-chan Event, error)

	Close() error
}

// CloneDocument makes a deep copy so callers and drivers never alias
// live map or slice state.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return CloneDocument(t)
	case map[string]any:
		return CloneDocument(Document(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
