package attendance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inout-backend/internal/domain"
	"inout-backend/internal/repository"
)

// SessionManager owns one live Session per signed-in user. Sessions
// start on first use and keep their three store subscriptions running
// until Close.
type SessionManager struct {
	Users      repository.Users
	Locations  repository.Locations
	Attendance repository.Attendance
	Logger     *slog.Logger
	Now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*ManagedSession
	ctx      context.Context
	cancel   context.CancelFunc
}

// ManagedSession wraps a Session with the latest snapshot and a
// fanout for streaming subscribers.
type ManagedSession struct {
	session *Session
	cancel  context.CancelFunc

	mu     sync.Mutex
	latest Snapshot
	subs   map[chan Snapshot]struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// Acquire returns the user's session, starting it if needed.
func (m *SessionManager) Acquire(uid string) (*ManagedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions == nil {
		m.sessions = make(map[string]*ManagedSession)
		m.ctx, m.cancel = context.WithCancel(context.Background())
	}
	if ms, ok := m.sessions[uid]; ok {
		return ms, nil
	}

	sctx, cancel := context.WithCancel(m.ctx)
	session := &Session{
		UID:        uid,
		Users:      m.Users,
		Locations:  m.Locations,
		Attendance: m.Attendance,
		Logger:     m.Logger,
		Now:        m.Now,
	}
	snaps, err := session.Start(sctx)
	if err != nil {
		cancel()
		return nil, err
	}

	ms := &ManagedSession{
		session: session,
		cancel:  cancel,
		subs:    make(map[chan Snapshot]struct{}),
		ready:   make(chan struct{}),
	}
	go ms.pump(snaps)
	m.sessions[uid] = ms
	return ms, nil
}

// Close tears down every session; pending verification results after
// this point are discarded without mutation.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.sessions = nil
}

func (ms *ManagedSession) pump(snaps <-chan Snapshot) {
	for snap := range snaps {
		ms.mu.Lock()
		ms.latest = snap
		for sub := range ms.subs {
			select {
			case sub <- snap:
			default:
				// Drop for slow stream consumers; the next change
				// delivers fresher state anyway.
			}
		}
		ms.mu.Unlock()
		ms.readyOnce.Do(func() { close(ms.ready) })
	}
}

// Ready blocks until the first snapshot has arrived, so a status read
// immediately after login does not observe an empty session.
func (ms *ManagedSession) Ready(ctx context.Context) error {
	select {
	case <-ms.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest derived state.
func (ms *ManagedSession) Snapshot() Snapshot {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.latest
}

// Subscribe registers a stream consumer. It receives the current
// snapshot immediately and every subsequent change until ctx is
// cancelled.
func (ms *ManagedSession) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 4)

	ms.mu.Lock()
	select {
	case <-ms.ready:
		ch <- ms.latest
	default:
	}
	ms.subs[ch] = struct{}{}
	ms.mu.Unlock()

	go func() {
		<-ctx.Done()
		ms.mu.Lock()
		delete(ms.subs, ch)
		ms.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Attempt runs one verified action on the underlying session.
func (ms *ManagedSession) Attempt(ctx context.Context, action domain.Action, biometric Biometric, locator Locator) (*Result, error) {
	return ms.session.Attempt(ctx, action, biometric, locator)
}
