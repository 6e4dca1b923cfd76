package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "users", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	if err := m.Set(ctx, "users", "u1", Document{"name": "Alex"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc, err := m.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc["name"] != "Alex" {
		t.Errorf("doc = %v", doc)
	}

	// Mutating the returned copy must not leak into the store.
	doc["name"] = "mutated"
	again, _ := m.Get(ctx, "users", "u1")
	if again["name"] != "Alex" {
		t.Error("Get returned an aliased document")
	}
}

func TestMemoryUpdateMissing(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), "users", "nope", []Update{{Field: "name", Value: "x"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryAppendPreservesDuplicates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "attendance", "r1", Document{"movementLog": []any{"Site A"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, site := range []string{"Site B", "Site A"} {
		if err := m.Update(ctx, "attendance", "r1", []Update{{Field: "movementLog", Value: site, Append: true}}); err != nil {
			t.Fatalf("Update append: %v", err)
		}
	}

	doc, err := m.Get(ctx, "attendance", "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	log, _ := doc["movementLog"].([]any)
	want := []any{"Site A", "Site B", "Site A"}
	if len(log) != len(want) {
		t.Fatalf("movementLog = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("movementLog[%d] = %v, want %v", i, log[i], want[i])
		}
	}
}

func readEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return Event{}
	}
}

func TestMemoryWatch(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Watch(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Current state arrives first, even for a missing document.
	ev := readEvent(t, ch)
	if ev.Exists {
		t.Errorf("initial event exists = true, want false")
	}

	if err := m.Set(ctx, "users", "u1", Document{"name": "Alex"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev = readEvent(t, ch)
	if !ev.Exists || ev.Doc["name"] != "Alex" {
		t.Errorf("event after Set = %+v", ev)
	}

	if err := m.Update(ctx, "users", "u1", []Update{{Field: "name", Value: "Sam"}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	ev = readEvent(t, ch)
	if ev.Doc["name"] != "Sam" {
		t.Errorf("event after Update = %+v", ev)
	}

	if err := m.Delete(ctx, "users", "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ev = readEvent(t, ch)
	if ev.Exists {
		t.Errorf("event after Delete exists = true")
	}

	cancel()
	for range ch {
		// Drain until the watcher closes the channel.
	}
}

func TestMemoryQueryFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	records := map[string]Document{
		"EMP-1_2026-01-05": {"employeeId": "EMP-1", "dateId": "2026-01-05"},
		"EMP-1_2026-01-20": {"employeeId": "EMP-1", "dateId": "2026-01-20"},
		"EMP-1_2026-02-02": {"employeeId": "EMP-1", "dateId": "2026-02-02"},
		"EMP-2_2026-01-10": {"employeeId": "EMP-2", "dateId": "2026-01-10"},
	}
	for key, doc := range records {
		if err := m.Set(ctx, "attendance", key, doc); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	got, err := m.Query(ctx, "attendance", []Filter{
		{Field: "employeeId", Op: "==", Value: "EMP-1"},
		{Field: "dateId", Op: ">=", Value: "2026-01-01"},
		{Field: "dateId", Op: "<=", Value: "2026-01-31"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query returned %d docs, want 2: %v", len(got), got)
	}
	for _, key := range []string{"EMP-1_2026-01-05", "EMP-1_2026-01-20"} {
		if _, ok := got[key]; !ok {
			t.Errorf("Query missing %s", key)
		}
	}
}

func TestMemoryQueryNumericRange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Lexicographic comparison would order "9" after "10"; numeric
	// fields must compare numerically.
	for key, dist := range map[string]float64{"near": 9, "edge": 10, "far": 120} {
		if err := m.Set(ctx, "attendance", key, Document{"distanceMeters": dist}); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	got, err := m.Query(ctx, "attendance", []Filter{
		{Field: "distanceMeters", Op: ">=", Value: 10},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query returned %d docs, want 2: %v", len(got), got)
	}
	if _, ok := got["near"]; ok {
		t.Error("distance 9 matched >= 10")
	}
	for _, key := range []string{"edge", "far"} {
		if _, ok := got[key]; !ok {
			t.Errorf("Query missing %s", key)
		}
	}

	// Mixed-type operands never match.
	got, err = m.Query(ctx, "attendance", []Filter{
		{Field: "distanceMeters", Op: "<=", Value: "10"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("mixed-type range matched %d docs, want 0", len(got))
	}
}
