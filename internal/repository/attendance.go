package repository

import (
	"context"
	"sort"

	"inout-backend/internal/domain"
	"inout-backend/internal/store"
)

type Attendance struct {
	Store store.Store
}

// RecordEvent is one emission from a today's-record watch.
type RecordEvent struct {
	Record *domain.AttendanceRecord // nil before first check-in
	Err    error
}

// RecordID builds the document key for one employee-day.
func RecordID(employeeID, dateID string) string {
	return employeeID + "_" + dateID
}

func decodeRecord(key string, doc store.Document) (*domain.AttendanceRecord, error) {
	employeeID := getString(doc, "employeeId")
	if employeeID == "" {
		return nil, &DecodeError{Collection: store.CollectionAttendance, Key: key, Field: "employeeId"}
	}
	dateID := getString(doc, "dateId")
	if dateID == "" {
		return nil, &DecodeError{Collection: store.CollectionAttendance, Key: key, Field: "dateId"}
	}
	distance, _ := getFloat(doc, "distanceMeters")
	return &domain.AttendanceRecord{
		RecordID:               key,
		EmployeeID:             employeeID,
		EmployeeName:           getString(doc, "employeeName"),
		DateID:                 dateID,
		CreatedTimestamp:       getInt64(doc, "timestamp"),
		CheckInTime:            getOptString(doc, "checkInTime"),
		CheckInLat:             getOptFloat(doc, "checkInLat"),
		CheckInLng:             getOptFloat(doc, "checkInLng"),
		CheckOutTime:           getOptString(doc, "checkOutTime"),
		CheckOutLat:            getOptFloat(doc, "checkOutLat"),
		CheckOutLng:            getOptFloat(doc, "checkOutLng"),
		TotalHours:             getOptString(doc, "totalHours"),
		DistanceMeters:         distance,
		LocationName:           getString(doc, "locationName"),
		LastVerifiedLocationID: getString(doc, "lastVerifiedLocationId"),
		MovementLog:            getStringSlice(doc, "movementLog"),
		FingerprintVerified:    getBool(doc, "fingerprintVerified"),
		LocationVerified:       getBool(doc, "locationVerified"),
	}, nil
}

func encodeRecord(r *domain.AttendanceRecord) store.Document {
	doc := store.Document{
		"recordId":               r.RecordID,
		"employeeId":             r.EmployeeID,
		"employeeName":           r.EmployeeName,
		"dateId":                 r.DateID,
		"timestamp":              r.CreatedTimestamp,
		"distanceMeters":         r.DistanceMeters,
		"locationName":           r.LocationName,
		"lastVerifiedLocationId": r.LastVerifiedLocationID,
		"fingerprintVerified":    r.FingerprintVerified,
		"locationVerified":       r.LocationVerified,
	}
	log := make([]any, len(r.MovementLog))
	for i, s := range r.MovementLog {
		log[i] = s
	}
	doc["movementLog"] = log
	if r.CheckInTime != nil {
		doc["checkInTime"] = *r.CheckInTime
	}
	if r.CheckInLat != nil {
		doc["checkInLat"] = *r.CheckInLat
	}
	if r.CheckInLng != nil {
		doc["checkInLng"] = *r.CheckInLng
	}
	if r.CheckOutTime != nil {
		doc["checkOutTime"] = *r.CheckOutTime
	}
	if r.CheckOutLat != nil {
		doc["checkOutLat"] = *r.CheckOutLat
	}
	if r.CheckOutLng != nil {
		doc["checkOutLng"] = *r.CheckOutLng
	}
	if r.TotalHours != nil {
		doc["totalHours"] = *r.TotalHours
	}
	return doc
}

// Get returns the record for one employee-day, or ErrNotFound before
// the first check-in of that day.
func (r Attendance) Get(ctx context.Context, employeeID, dateID string) (*domain.AttendanceRecord, error) {
	key := RecordID(employeeID, dateID)
	doc, err := r.Store.Get(ctx, store.CollectionAttendance, key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(key, doc)
}

// CreateDay writes the full day record produced by a check-in.
func (r Attendance) CreateDay(ctx context.Context, rec *domain.AttendanceRecord) error {
	return r.Store.Set(ctx, store.CollectionAttendance, rec.RecordID, encodeRecord(rec))
}

// ApplyTransit adds the newly verified site: cumulative distance,
// movement log append (duplicates preserved), current site fields.
func (r Attendance) ApplyTransit(ctx context.Context, recordID string, totalDistance float64, siteName, siteID string) error {
	return r.Store.Update(ctx, store.CollectionAttendance, recordID, []store.Update{
		{Field: "distanceMeters", Value: totalDistance},
		{Field: "movementLog", Value: siteName, Append: true},
		{Field: "locationName", Value: siteName},
		{Field: "lastVerifiedLocationId", Value: siteID},
	})
}

// ApplyCheckOut closes the day. The record is terminal afterwards.
func (r Attendance) ApplyCheckOut(ctx context.Context, recordID, checkOutTime string, lat, lng float64, totalHours string) error {
	return r.Store.Update(ctx, store.CollectionAttendance, recordID, []store.Update{
		{Field: "checkOutTime", Value: checkOutTime},
		{Field: "checkOutLat", Value: lat},
		{Field: "checkOutLng", Value: lng},
		{Field: "totalHours", Value: totalHours},
	})
}

// ListRange returns an employee's records between two dateIds
// inclusive, newest first.
func (r Attendance) ListRange(ctx context.Context, employeeID, fromDateID, toDateID string) ([]*domain.AttendanceRecord, error) {
	docs, err := r.Store.Query(ctx, store.CollectionAttendance, []store.Filter{
		{Field: "employeeId", Op: "==", Value: employeeID},
		{Field: "dateId", Op: ">=", Value: fromDateID},
		{Field: "dateId", Op: "<=", Value: toDateID},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AttendanceRecord, 0, len(docs))
	for key, doc := range docs {
		rec, err := decodeRecord(key, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateID > out[j].DateID })
	return out, nil
}

// WatchDay delivers today's record now and on every change until ctx
// is cancelled.
func (r Attendance) WatchDay(ctx context.Context, employeeID, dateID string) (<-chan RecordEvent, error) {
	key := RecordID(employeeID, dateID)
	events, err := r.Store.Watch(ctx, store.CollectionAttendance, key)
	if err != nil {
		return nil, err
	}
	out := make(chan RecordEvent, 1)
	go func() {
		defer close(out)
		for ev := range events {
			var re RecordEvent
			if ev.Exists {
				re.Record, re.Err = decodeRecord(key, ev.Doc)
			}
			select {
			case out <- re:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
