// Package attendance implements the per-employee per-day
// check-in/transit/check-out state machine and the session that runs
// it against live document-store state.
package attendance

import "inout-backend/internal/domain"

// DeriveStatus computes the day state. It is never stored: the state
// is a function of the fetched record and the currently assigned
// site.
func DeriveStatus(record *domain.AttendanceRecord, assignedLocationID string) domain.DayStatus {
	switch {
	case record == nil:
		return domain.StatusNotStarted
	case record.Completed():
		return domain.StatusCompleted
	case record.LastVerifiedLocationID == assignedLocationID:
		return domain.StatusInProgressSameSite
	default:
		return domain.StatusInProgressSiteChanged
	}
}

// DecideAllowedActions returns the actions permitted in the current
// state. Pure, no I/O.
//
//	NOT_STARTED              -> {CHECK_IN}
//	IN_PROGRESS same site    -> {CHECK_OUT}
//	IN_PROGRESS site changed -> {TRANSIT, CHECK_OUT}
//	COMPLETED                -> {}
func DecideAllowedActions(record *domain.AttendanceRecord, assignedLocationID string) []domain.Action {
	switch DeriveStatus(record, assignedLocationID) {
	case domain.StatusNotStarted:
		return []domain.Action{domain.ActionCheckIn}
	case domain.StatusInProgressSameSite:
		return []domain.Action{domain.ActionCheckOut}
	case domain.StatusInProgressSiteChanged:
		return []domain.Action{domain.ActionTransit, domain.ActionCheckOut}
	default:
		return nil
	}
}

// ActionAllowed reports whether action is in the allowed set for the
// current state.
func ActionAllowed(action domain.Action, record *domain.AttendanceRecord, assignedLocationID string) bool {
	for _, a := range DecideAllowedActions(record, assignedLocationID) {
		if a == action {
			return true
		}
	}
	return false
}
