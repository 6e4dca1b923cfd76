package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "docstore_changes"

// Postgres backs the Store port with a single jsonb document table,
// for self-hosted deployments without a Firebase project. Every write
// issues pg_notify so watches stay live across processes.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string][]*memoryWatcher

	cancelListen context.CancelFunc
}

// NewPostgres creates and verifies a pgx pool, ensures the document
// table exists, and starts the notification listener.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	p := &Postgres{
		pool:     pool,
		logger:   logger,
		watchers: make(map[string][]*memoryWatcher),
	}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	listenCtx, cancelListen := context.WithCancel(context.Background())
	p.cancelListen = cancelListen
	go p.listen(listenCtx)

	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection  text NOT NULL,
			key         text NOT NULL,
			data        jsonb NOT NULL,
			updated_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND key=$2`,
		collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func (p *Postgres) Set(ctx context.Context, collection, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, collection, key, raw)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return p.notify(ctx, collection, key)
}

func (p *Postgres) Update(ctx context.Context, collection, key string, updates []Update) error {
	// Build a single-statement jsonb expression so the mutation stays
	// atomic: plain field updates merge as an object, appends wrap in
	// jsonb_set with array concatenation. Field names come from code,
	// never from request input.
	expr := "data"
	args := []any{collection, key}

	patch := make(map[string]any)
	for _, u := range updates {
		if !u.Append {
			patch[u.Field] = u.Value
		}
	}
	if len(patch) > 0 {
		raw, err := json.Marshal(patch)
		if err != nil {
			return fmt.Errorf("encode patch %s/%s: %w", collection, key, err)
		}
		args = append(args, raw)
		expr = fmt.Sprintf("%s || $%d::jsonb", expr, len(args))
	}
	for _, u := range updates {
		if !u.Append {
			continue
		}
		raw, err := json.Marshal([]any{u.Value})
		if err != nil {
			return fmt.Errorf("encode append %s/%s: %w", collection, key, err)
		}
		args = append(args, raw)
		expr = fmt.Sprintf("jsonb_set(%s, '{%s}', coalesce(%s->'%s', '[]'::jsonb) || $%d::jsonb)",
			expr, u.Field, "data", u.Field, len(args))
	}

	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE documents SET data = %s, updated_at = now()
		WHERE collection=$1 AND key=$2
	`, expr), args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return p.notify(ctx, collection, key)
}

func (p *Postgres) Delete(ctx context.Context, collection, key string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection=$1 AND key=$2`, collection, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return p.notify(ctx, collection, key)
}

func (p *Postgres) Query(ctx context.Context, collection string, filters []Filter) (map[string]Document, error) {
	sql := `SELECT key, data FROM documents WHERE collection=$1`
	args := []any{collection}
	for _, f := range filters {
		op := f.Op
		switch op {
		case "==":
			op = "="
		case ">=", "<=":
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args = append(args, fmt.Sprint(f.Value))
		sql += fmt.Sprintf(" AND data->>'%s' %s $%d", f.Field, op, len(args))
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
		}
		out[key] = doc
	}
	return out, rows.Err()
}

func (p *Postgres) Watch(ctx context.Context, collection, key string) (<-chan Event, error) {
	doc, err := p.Get(ctx, collection, key)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	w := &memoryWatcher{ch: make(chan Event, 16), done: ctx.Done()}
	id := watchKey(collection, key)

	// Current value lands before any notification can be fanned out:
	// registration and the initial send share the critical section.
	p.mu.Lock()
	p.watchers[id] = append(p.watchers[id], w)
	w.ch <- Event{Doc: doc, Exists: err == nil}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.removeWatcher(id, w)
	}()

	return w.ch, nil
}

// removeWatcher unregisters and closes under the mutex, so a dispatch
// holding the lock can never send on a closed channel.
func (p *Postgres) removeWatcher(id string, w *memoryWatcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.watchers[id]
	for i, cand := range list {
		if cand == w {
			p.watchers[id] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(w.ch)
}

func (p *Postgres) notify(ctx context.Context, collection, key string) error {
	_, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`,
		notifyChannel, collection+"|"+key)
	if err != nil {
		return fmt.Errorf("notify %s/%s: %w", collection, key, err)
	}
	return nil
}

// listen holds a dedicated connection on LISTEN and fans incoming
// notifications out to document watchers, re-reading the document so
// subscribers always see store state rather than the notification
// payload.
func (p *Postgres) listen(ctx context.Context) {
	for ctx.Err() == nil {
		if err := p.listenOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("docstore listener reconnecting", "err", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		collection, key, ok := strings.Cut(n.Payload, "|")
		if !ok {
			continue
		}
		p.dispatch(ctx, collection, key)
	}
}

func (p *Postgres) dispatch(ctx context.Context, collection, key string) {
	id := watchKey(collection, key)
	p.mu.Lock()
	registered := len(p.watchers[id])
	p.mu.Unlock()
	if registered == 0 {
		return
	}

	doc, err := p.Get(ctx, collection, key)
	if err != nil && err != ErrNotFound {
		p.logger.Warn("docstore watch read failed", "collection", collection, "key", key, "err", err)
		return
	}
	p.fanout(id, Event{Doc: doc, Exists: err == nil})
}

// fanout delivers one event to every registered watcher. Sends happen
// under the mutex: removeWatcher closes channels under the same lock,
// so no send can race a close.
func (p *Postgres) fanout(id string, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.watchers[id] {
		select {
		case <-w.done:
		case w.ch <- ev:
		default:
		}
	}
}

func (p *Postgres) Close() error {
	if p.cancelListen != nil {
		p.cancelListen()
	}
	p.pool.Close()
	return nil
}

// Health checks database connectivity.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
