package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and local development.
// Watches are fanned out synchronously under the store lock with a
// buffered channel per subscriber.
type Memory struct {
	mu       sync.Mutex
	data     map[string]map[string]Document
	watchers map[string][]*memoryWatcher
}

type memoryWatcher struct {
	ch   chan Event
	done <-chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]map[string]Document),
		watchers: make(map[string][]*memoryWatcher),
	}
}

func (m *Memory) Get(ctx context.Context, collection, key string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return CloneDocument(doc), nil
}

func (m *Memory) Set(ctx context.Context, collection, key string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Document)
	}
	m.data[collection][key] = CloneDocument(doc)
	m.notifyLocked(collection, key)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, key string, updates []Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][key]
	if !ok {
		return ErrNotFound
	}
	for _, u := range updates {
		if !u.Append {
			doc[u.Field] = cloneValue(u.Value)
			continue
		}
		arr, _ := doc[u.Field].([]any)
		doc[u.Field] = append(arr, cloneValue(u.Value))
	}
	m.notifyLocked(collection, key)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[collection][key]; !ok {
		return nil
	}
	delete(m.data[collection], key)
	m.notifyLocked(collection, key)
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, filters []Filter) (map[string]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Document)
	for key, doc := range m.data[collection] {
		if matchesFilters(doc, filters) {
			out[key] = CloneDocument(doc)
		}
	}
	return out, nil
}

func (m *Memory) Watch(ctx context.Context, collection, key string) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &memoryWatcher{
		// Buffered so a slow consumer cannot deadlock writers; the
		// latest state always lands because senders drop only when a
		// newer event is already queued behind it.
		ch:   make(chan Event, 16),
		done: ctx.Done(),
	}
	id := watchKey(collection, key)
	m.watchers[id] = append(m.watchers[id], w)

	// Current value first, matching the snapshot-listener contract.
	doc, ok := m.data[collection][key]
	w.ch <- Event{Doc: CloneDocument(doc), Exists: ok}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.watchers[id]
		for i, cand := range list {
			if cand == w {
				m.watchers[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(w.ch)
	}()

	return w.ch, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) notifyLocked(collection, key string) {
	doc, ok := m.data[collection][key]
	for _, w := range m.watchers[watchKey(collection, key)] {
		select {
		case <-w.done:
		case w.ch <- Event{Doc: CloneDocument(doc), Exists: ok}:
		default:
			// Subscriber is saturated; it will still observe a
			// recent state from events already queued.
		}
	}
}

func watchKey(collection, key string) string {
	return collection + "/" + key
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		val, ok := doc[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case "==":
			if fmt.Sprint(val) != fmt.Sprint(f.Value) {
				return false
			}
		case ">=":
			cmp, ok := compareValues(val, f.Value)
			if !ok || cmp < 0 {
				return false
			}
		case "<=":
			cmp, ok := compareValues(val, f.Value)
			if !ok || cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two filter operands: numerics numerically,
// strings lexicographically. Mismatched or unordered types do not
// match, they are never coerced through their string forms.
func compareValues(a, b any) (int, bool) {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
