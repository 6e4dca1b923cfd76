package repository

import (
	"context"
	"errors"

	"inout-backend/internal/domain"
	"inout-backend/internal/geo"
	"inout-backend/internal/store"
)

var (
	ErrInvalidRadius     = errors.New("radius must be greater than zero")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)

type Locations struct {
	Store store.Store
}

// LocationEvent is one emission from an assigned-site watch.
type LocationEvent struct {
	Location *domain.Location
	Err      error
}

func decodeLocation(key string, doc store.Document) (*domain.Location, error) {
	lat, ok := getFloat(doc, "latitude")
	if !ok {
		return nil, &DecodeError{Collection: store.CollectionLocations, Key: key, Field: "latitude"}
	}
	lng, ok := getFloat(doc, "longitude")
	if !ok {
		return nil, &DecodeError{Collection: store.CollectionLocations, Key: key, Field: "longitude"}
	}
	radius, ok := getFloat(doc, "radius")
	if !ok {
		return nil, &DecodeError{Collection: store.CollectionLocations, Key: key, Field: "radius"}
	}
	return &domain.Location{
		ID:           key,
		Name:         getString(doc, "name"),
		Latitude:     lat,
		Longitude:    lng,
		RadiusMeters: radius,
	}, nil
}

func encodeLocation(l *domain.Location) store.Document {
	return store.Document{
		"id":        l.ID,
		"name":      l.Name,
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
		"radius":    l.RadiusMeters,
	}
}

// Validate enforces the site invariants before anything is stored.
func validateLocation(l *domain.Location) error {
	if l.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	if !geo.ValidCoordinate(l.Latitude, l.Longitude) {
		return ErrInvalidCoordinate
	}
	return nil
}

func (r Locations) Get(ctx context.Context, id string) (*domain.Location, error) {
	doc, err := r.Store.Get(ctx, store.CollectionLocations, id)
	if err != nil {
		return nil, err
	}
	return decodeLocation(id, doc)
}

func (r Locations) Create(ctx context.Context, l *domain.Location) error {
	if err := validateLocation(l); err != nil {
		return err
	}
	return r.Store.Set(ctx, store.CollectionLocations, l.ID, encodeLocation(l))
}

func (r Locations) Delete(ctx context.Context, id string) error {
	return r.Store.Delete(ctx, store.CollectionLocations, id)
}

func (r Locations) List(ctx context.Context) ([]*domain.Location, error) {
	docs, err := r.Store.Query(ctx, store.CollectionLocations, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Location, 0, len(docs))
	for key, doc := range docs {
		l, err := decodeLocation(key, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Watch delivers the decoded site now and on every change until ctx
// is cancelled.
func (r Locations) Watch(ctx context.Context, id string) (<-chan LocationEvent, error) {
	events, err := r.Store.Watch(ctx, store.CollectionLocations, id)
	if err != nil {
		return nil, err
	}
	out := make(chan LocationEvent, 1)
	go func() {
		defer close(out)
		for ev := range events {
			var le LocationEvent
			if ev.Exists {
				le.Location, le.Err = decodeLocation(id, ev.Doc)
			}
			select {
			case out <- le:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
