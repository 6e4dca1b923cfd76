package attendance

import (
	"testing"

	"inout-backend/internal/domain"
)

func strptr(s string) *string { return &s }

func openRecord(siteID string) *domain.AttendanceRecord {
	return &domain.AttendanceRecord{
		RecordID:               "EMP-1_2026-01-22",
		EmployeeID:             "EMP-1",
		DateID:                 "2026-01-22",
		CheckInTime:            strptr("09:00 AM"),
		LastVerifiedLocationID: siteID,
	}
}

func completedRecord(siteID string) *domain.AttendanceRecord {
	rec := openRecord(siteID)
	rec.CheckOutTime = strptr("05:00 PM")
	rec.TotalHours = strptr("8h 00m")
	return rec
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		record   *domain.AttendanceRecord
		assigned string
		want     domain.DayStatus
	}{
		{"no record today", nil, "site-a", domain.StatusNotStarted},
		{"open at the assigned site", openRecord("site-a"), "site-a", domain.StatusInProgressSameSite},
		{"open after reassignment", openRecord("site-a"), "site-b", domain.StatusInProgressSiteChanged},
		{"checked out", completedRecord("site-a"), "site-a", domain.StatusCompleted},
		{"checked out then reassigned stays terminal", completedRecord("site-a"), "site-b", domain.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.record, tt.assigned); got != tt.want {
				t.Errorf("DeriveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecideAllowedActions(t *testing.T) {
	tests := []struct {
		name     string
		record   *domain.AttendanceRecord
		assigned string
		want     []domain.Action
	}{
		{"no record permits only check-in", nil, "site-a", []domain.Action{domain.ActionCheckIn}},
		{"same site permits only check-out", openRecord("site-a"), "site-a", []domain.Action{domain.ActionCheckOut}},
		{"changed site permits transit and check-out", openRecord("site-a"), "site-b", []domain.Action{domain.ActionTransit, domain.ActionCheckOut}},
		{"completed permits nothing", completedRecord("site-a"), "site-a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideAllowedActions(tt.record, tt.assigned)
			if len(got) != len(tt.want) {
				t.Fatalf("DecideAllowedActions() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DecideAllowedActions()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestActionAllowed(t *testing.T) {
	rec := openRecord("site-a")

	if ActionAllowed(domain.ActionCheckIn, rec, "site-a") {
		t.Error("CHECK_IN should not be allowed with an open record")
	}
	if !ActionAllowed(domain.ActionCheckOut, rec, "site-a") {
		t.Error("CHECK_OUT should be allowed with an open record at the assigned site")
	}
	if ActionAllowed(domain.ActionTransit, rec, "site-a") {
		t.Error("TRANSIT should not be allowed when the site has not changed")
	}
	if !ActionAllowed(domain.ActionTransit, rec, "site-b") {
		t.Error("TRANSIT should be allowed after reassignment")
	}
	if ActionAllowed(domain.ActionCheckOut, completedRecord("site-a"), "site-a") {
		t.Error("no action should be allowed on a completed record")
	}
}
