package store

import (
	"context"
	"sync"
	"testing"
)

// Fanout and watcher teardown run on different goroutines; delivering
// to a watcher that is being torn down must never panic on a closed
// channel.
func TestPostgresFanoutTeardownRace(t *testing.T) {
	p := &Postgres{watchers: make(map[string][]*memoryWatcher)}
	id := watchKey("users", "u1")
	ev := Event{Doc: Document{"name": "Alex"}, Exists: true}

	const rounds = 200
	for i := 0; i < rounds; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		w := &memoryWatcher{ch: make(chan Event, 16), done: ctx.Done()}
		p.mu.Lock()
		p.watchers[id] = append(p.watchers[id], w)
		p.mu.Unlock()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				p.fanout(id, ev)
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
			p.removeWatcher(id, w)
		}()
		wg.Wait()

		// The channel must be closed exactly once and drain cleanly.
		for range w.ch {
		}
	}

	p.mu.Lock()
	remaining := len(p.watchers[id])
	p.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d watchers left registered after teardown", remaining)
	}
}
