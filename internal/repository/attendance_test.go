package repository

import (
	"context"
	"errors"
	"testing"

	"inout-backend/internal/domain"
	"inout-backend/internal/store"
)

func TestRecordID(t *testing.T) {
	if got := RecordID("EMP-1", "2026-01-22"); got != "EMP-1_2026-01-22" {
		t.Errorf("RecordID = %q", got)
	}
}

func strptr(s string) *string { return &s }

func TestAttendanceDayLifecycle(t *testing.T) {
	repo := Attendance{Store: store.NewMemory()}
	ctx := context.Background()

	if _, err := repo.Get(ctx, "EMP-1", "2026-01-22"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get before check-in = %v, want ErrNotFound", err)
	}

	rec := &domain.AttendanceRecord{
		RecordID:               RecordID("EMP-1", "2026-01-22"),
		EmployeeID:             "EMP-1",
		EmployeeName:           "Alex",
		DateID:                 "2026-01-22",
		CreatedTimestamp:       1769072400000,
		CheckInTime:            strptr("09:00 AM"),
		DistanceMeters:         10,
		LocationName:           "Site A",
		LastVerifiedLocationID: "site-a",
		MovementLog:            []string{"Site A"},
		FingerprintVerified:    true,
		LocationVerified:       true,
	}
	if err := repo.CreateDay(ctx, rec); err != nil {
		t.Fatalf("CreateDay: %v", err)
	}

	got, err := repo.Get(ctx, "EMP-1", "2026-01-22")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EmployeeName != "Alex" || got.CheckInTime == nil || *got.CheckInTime != "09:00 AM" {
		t.Errorf("Get after CreateDay = %+v", got)
	}
	if got.Completed() {
		t.Error("open record reported completed")
	}

	// Transit to the same site twice; the movement log keeps both.
	if err := repo.ApplyTransit(ctx, rec.RecordID, 15, "Site B", "site-b"); err != nil {
		t.Fatalf("ApplyTransit: %v", err)
	}
	if err := repo.ApplyTransit(ctx, rec.RecordID, 20, "Site A", "site-a"); err != nil {
		t.Fatalf("ApplyTransit: %v", err)
	}
	got, err = repo.Get(ctx, "EMP-1", "2026-01-22")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DistanceMeters != 20 || got.LastVerifiedLocationID != "site-a" {
		t.Errorf("record after transits = %+v", got)
	}
	wantLog := []string{"Site A", "Site B", "Site A"}
	if len(got.MovementLog) != len(wantLog) {
		t.Fatalf("movement log = %v, want %v", got.MovementLog, wantLog)
	}
	for i := range wantLog {
		if got.MovementLog[i] != wantLog[i] {
			t.Errorf("movement log[%d] = %q, want %q", i, got.MovementLog[i], wantLog[i])
		}
	}

	if err := repo.ApplyCheckOut(ctx, rec.RecordID, "05:00 PM", -6.2, 106.8, "8h 00m"); err != nil {
		t.Fatalf("ApplyCheckOut: %v", err)
	}
	got, err = repo.Get(ctx, "EMP-1", "2026-01-22")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Completed() || got.TotalHours == nil || *got.TotalHours != "8h 00m" {
		t.Errorf("record after check-out = %+v", got)
	}
}

func TestAttendanceListRange(t *testing.T) {
	repo := Attendance{Store: store.NewMemory()}
	ctx := context.Background()

	days := []string{"2026-01-05", "2026-01-20", "2026-02-02"}
	for _, day := range days {
		rec := &domain.AttendanceRecord{
			RecordID:   RecordID("EMP-1", day),
			EmployeeID: "EMP-1",
			DateID:     day,
		}
		if err := repo.CreateDay(ctx, rec); err != nil {
			t.Fatalf("CreateDay %s: %v", day, err)
		}
	}
	// Another employee in the same range must not leak in.
	if err := repo.CreateDay(ctx, &domain.AttendanceRecord{
		RecordID:   RecordID("EMP-2", "2026-01-10"),
		EmployeeID: "EMP-2",
		DateID:     "2026-01-10",
	}); err != nil {
		t.Fatalf("CreateDay: %v", err)
	}

	got, err := repo.ListRange(ctx, "EMP-1", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRange returned %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].DateID != "2026-01-20" || got[1].DateID != "2026-01-05" {
		t.Errorf("ListRange order = [%s, %s], want newest first", got[0].DateID, got[1].DateID)
	}
}

func TestDecodeRecordRequiresKeyFields(t *testing.T) {
	repo := Attendance{Store: store.NewMemory()}
	ctx := context.Background()

	key := RecordID("EMP-9", "2026-01-22")
	if err := repo.Store.Set(ctx, store.CollectionAttendance, key, store.Document{"dateId": "2026-01-22"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, err := repo.Get(ctx, "EMP-9", "2026-01-22")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
	if de.Field != "employeeId" {
		t.Errorf("DecodeError field = %q, want employeeId", de.Field)
	}
}
