package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inout-backend/internal/attendance"
	"inout-backend/internal/domain"
	"inout-backend/internal/server/authctx"
)

type AttendanceHandler struct {
	Sessions *attendance.SessionManager
}

func (h AttendanceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/attendance/status", h.status)
	r.Get("/attendance/stream", h.stream)
	r.Post("/attendance/checkin", h.action(domain.ActionCheckIn))
	r.Post("/attendance/transit", h.action(domain.ActionTransit))
	r.Post("/attendance/checkout", h.action(domain.ActionCheckOut))
}

// actionRequest carries the verification results the device produced:
// the biometric prompt outcome and the GPS fix. Coordinates are
// explicit optionals so a missing fix is never mistaken for (0,0).
type actionRequest struct {
	FingerprintVerified bool     `json:"fingerprintVerified"`
	BiometricError      string   `json:"biometricError"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationError       string   `json:"locationError"`
}

// deviceBiometric adapts the request-supplied prompt outcome to the
// session's single-shot collaborator contract.
type deviceBiometric struct {
	verified bool
	message  string
}

func (d deviceBiometric) Authenticate(ctx context.Context) error {
	if d.verified {
		return nil
	}
	if d.message != "" {
		return errors.New(d.message)
	}
	return errors.New("not verified")
}

type deviceLocator struct {
	lat, lng *float64
	message  string
}

func (d deviceLocator) CurrentLocation(ctx context.Context) (attendance.Fix, error) {
	if d.lat == nil || d.lng == nil {
		if d.message != "" {
			return attendance.Fix{}, errors.New(d.message)
		}
		return attendance.Fix{}, errors.New("no fix")
	}
	return attendance.Fix{Lat: *d.lat, Lng: *d.lng}, nil
}

func (h AttendanceHandler) session(w http.ResponseWriter, r *http.Request) *attendance.ManagedSession {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	ms, err := h.Sessions.Acquire(user.UID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if err := ms.Ready(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "session not ready")
		return nil
	}
	return ms
}

func (h AttendanceHandler) status(w http.ResponseWriter, r *http.Request) {
	ms := h.session(w, r)
	if ms == nil {
		return
	}
	writeJSON(w, http.StatusOK, snapshotJSON(ms.Snapshot()))
}

// stream pushes the derived status as server-sent events: one event
// immediately, then one per store change.
func (h AttendanceHandler) stream(w http.ResponseWriter, r *http.Request) {
	ms := h.session(w, r)
	if ms == nil {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	for snap := range ms.Subscribe(r.Context()) {
		data, err := json.Marshal(snapshotJSON(snap))
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h AttendanceHandler) action(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ms := h.session(w, r)
		if ms == nil {
			return
		}
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		result, err := ms.Attempt(r.Context(), action,
			deviceBiometric{verified: req.FingerprintVerified, message: req.BiometricError},
			deviceLocator{lat: req.Latitude, lng: req.Longitude, message: req.LocationError},
		)
		if err != nil {
			writeActionError(w, err)
			return
		}

		resp := map[string]any{
			"action":         string(result.Action),
			"recordId":       result.RecordID,
			"distanceMeters": result.DistanceMeters,
		}
		if result.TotalHours != "" {
			resp["totalHours"] = result.TotalHours
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeActionError(w http.ResponseWriter, err error) {
	var oor *domain.OutOfRangeError
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrLocationUnavailable),
		errors.Is(err, domain.ErrNoAssignedLocation),
		errors.Is(err, domain.ErrNoEmployeeID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &oor):
		writeRawJSON(w, http.StatusForbidden, apiResponse{
			Status:  "error",
			Message: oor.Error(),
			Data: map[string]any{
				"locationName":   oor.LocationName,
				"distanceMeters": oor.DistanceMeters,
				"radiusMeters":   oor.RadiusMeters,
			},
			Error: &apiError{Code: http.StatusForbidden, Status: http.StatusText(http.StatusForbidden)},
		})
	case errors.Is(err, domain.ErrNotApproved):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrActionNotAllowed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrActionInFlight):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func snapshotJSON(snap attendance.Snapshot) map[string]any {
	allowed := make([]string, 0, len(snap.Allowed))
	for _, a := range snap.Allowed {
		allowed = append(allowed, string(a))
	}
	out := map[string]any{
		"status":         string(snap.Status),
		"allowedActions": allowed,
	}
	if snap.Location != nil {
		out["assignedLocation"] = locationJSON(snap.Location)
	}
	if snap.Record != nil {
		out["record"] = recordJSON(snap.Record)
	}
	return out
}

func recordJSON(rec *domain.AttendanceRecord) map[string]any {
	return map[string]any{
		"recordId":               rec.RecordID,
		"employeeId":             rec.EmployeeID,
		"employeeName":           rec.EmployeeName,
		"dateId":                 rec.DateID,
		"checkInTime":            strOrNil(rec.CheckInTime),
		"checkOutTime":           strOrNil(rec.CheckOutTime),
		"totalHours":             strOrNil(rec.TotalHours),
		"distanceMeters":         rec.DistanceMeters,
		"locationName":           rec.LocationName,
		"lastVerifiedLocationId": rec.LastVerifiedLocationID,
		"movementLog":            rec.MovementLog,
		"fingerprintVerified":    rec.FingerprintVerified,
		"locationVerified":       rec.LocationVerified,
	}
}
