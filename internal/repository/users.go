package repository

import (
	"context"

	"inout-backend/internal/domain"
	"inout-backend/internal/store"
)

type Users struct {
	Store store.Store
}

// UserEvent is one emission from a profile watch.
type UserEvent struct {
	User *domain.User // nil when the document is absent
	Err  error
}

func decodeUser(key string, doc store.Document) (*domain.User, error) {
	email := getString(doc, "email")
	if email == "" {
		return nil, &DecodeError{Collection: store.CollectionUsers, Key: key, Field: "email"}
	}
	role := domain.UserRole(getString(doc, "role"))
	if role == "" {
		role = domain.RoleEmployee
	}
	return &domain.User{
		UID:                key,
		Name:               getString(doc, "name"),
		Email:              email,
		Phone:              getString(doc, "phone"),
		Role:               role,
		Approved:           getBool(doc, "approved"),
		EmployeeID:         getOptString(doc, "employeeId"),
		AssignedLocationID: getOptString(doc, "assignedLocationId"),
		PhotoURL:           getString(doc, "photoUrl"),
	}, nil
}

func encodeUser(u *domain.User) store.Document {
	doc := store.Document{
		"uid":      u.UID,
		"name":     u.Name,
		"email":    u.Email,
		"phone":    u.Phone,
		"role":     string(u.Role),
		"approved": u.Approved,
		"photoUrl": u.PhotoURL,
	}
	if u.EmployeeID != nil {
		doc["employeeId"] = *u.EmployeeID
	}
	if u.AssignedLocationID != nil {
		doc["assignedLocationId"] = *u.AssignedLocationID
	}
	return doc
}

func (r Users) Get(ctx context.Context, uid string) (*domain.User, error) {
	doc, err := r.Store.Get(ctx, store.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	return decodeUser(uid, doc)
}

func (r Users) Create(ctx context.Context, u *domain.User) error {
	return r.Store.Set(ctx, store.CollectionUsers, u.UID, encodeUser(u))
}

func (r Users) List(ctx context.Context) ([]*domain.User, error) {
	docs, err := r.Store.Query(ctx, store.CollectionUsers, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(docs))
	for key, doc := range docs {
		u, err := decodeUser(key, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// SetApproval flips the admin approval flag.
func (r Users) SetApproval(ctx context.Context, uid string, approved bool) error {
	return r.Store.Update(ctx, store.CollectionUsers, uid, []store.Update{
		{Field: "approved", Value: approved},
	})
}

// Assign sets the badge id and office site an employee reports to.
func (r Users) Assign(ctx context.Context, uid, employeeID, assignedLocationID string) error {
	return r.Store.Update(ctx, store.CollectionUsers, uid, []store.Update{
		{Field: "employeeId", Value: employeeID},
		{Field: "assignedLocationId", Value: assignedLocationID},
	})
}

// Watch delivers the decoded profile now and on every change until
// ctx is cancelled.
func (r Users) Watch(ctx context.Context, uid string) (<-chan UserEvent, error) {
	events, err := r.Store.Watch(ctx, store.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	out := make(chan UserEvent, 1)
	go func() {
		defer close(out)
		for ev := range events {
			var ue UserEvent
			if ev.Exists {
				ue.User, ue.Err = decodeUser(uid, ev.Doc)
			}
			select {
			case out <- ue:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
