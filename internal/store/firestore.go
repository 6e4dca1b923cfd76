package store

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore backs the Store port with a Cloud Firestore database
// reached through the Firebase admin SDK. The client can be rebound
// to a different tenant project at runtime; in-flight calls finish on
// the client they started with.
type Firestore struct {
	mu        sync.RWMutex
	client    *firestore.Client
	projectID string
	opts      []option.ClientOption
}

// NewFirestore connects to the given Firebase project. The client
// options (credentials) are kept for later tenant rebinds.
func NewFirestore(ctx context.Context, projectID string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := newFirestoreClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	return &Firestore{client: client, projectID: projectID, opts: opts}, nil
}

func newFirestoreClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	return client, nil
}

// Rebind switches the store to a different tenant project. Rebinding
// to the already-bound project is a no-op.
func (f *Firestore) Rebind(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if projectID == f.projectID {
		return nil
	}
	client, err := newFirestoreClient(ctx, projectID, f.opts...)
	if err != nil {
		return err
	}
	if f.client != nil {
		_ = f.client.Close()
	}
	f.client = client
	f.projectID = projectID
	return nil
}

// ProjectID returns the currently bound tenant project.
func (f *Firestore) ProjectID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.projectID
}

func (f *Firestore) current() *firestore.Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client
}

func (f *Firestore) Get(ctx context.Context, collection, key string) (Document, error) {
	snap, err := f.current().Collection(collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get %s/%s: %w", collection, key, err)
	}
	return Document(snap.Data()), nil
}

func (f *Firestore) Set(ctx context.Context, collection, key string, doc Document) error {
	_, err := f.current().Collection(collection).Doc(key).Set(ctx, map[string]any(doc))
	if err != nil {
		return fmt.Errorf("firestore set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, key string, updates []Update) error {
	client := f.current()
	ref := client.Collection(collection).Doc(key)

	if !hasAppend(updates) {
		fsUpdates := make([]firestore.Update, 0, len(updates))
		for _, u := range updates {
			fsUpdates = append(fsUpdates, firestore.Update{Path: u.Field, Value: u.Value})
		}
		if _, err := ref.Update(ctx, fsUpdates); err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return fmt.Errorf("firestore update %s/%s: %w", collection, key, err)
		}
		return nil
	}

	// ArrayUnion deduplicates, which would drop repeated movement-log
	// entries; appends run as a read-modify-write transaction instead.
	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		data := snap.Data()
		for _, u := range updates {
			if !u.Append {
				data[u.Field] = u.Value
				continue
			}
			arr, _ := data[u.Field].([]any)
			data[u.Field] = append(arr, u.Value)
		}
		return tx.Set(ref, data)
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("firestore update %s/%s: %w", collection, key, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, collection, key string) error {
	if _, err := f.current().Collection(collection).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, filters []Filter) (map[string]Document, error) {
	q := f.current().Collection(collection).Query
	for _, flt := range filters {
		q = q.Where(flt.Field, flt.Op, flt.Value)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make(map[string]Document)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore query %s: %w", collection, err)
		}
		out[snap.Ref.ID] = Document(snap.Data())
	}
	return out, nil
}

func (f *Firestore) Watch(ctx context.Context, collection, key string) (<-chan Event, error) {
	snaps := f.current().Collection(collection).Doc(key).Snapshots(ctx)
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				// Cancelled contexts end the subscription; other
				// errors end it too and the caller resubscribes.
				return
			}
			ev := Event{Exists: snap.Exists()}
			if ev.Exists {
				ev.Doc = Document(snap.Data())
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (f *Firestore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}

func hasAppend(updates []Update) bool {
	for _, u := range updates {
		if u.Append {
			return true
		}
	}
	return false
}
