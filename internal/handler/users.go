package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inout-backend/internal/domain"
	"inout-backend/internal/repository"
	"inout-backend/internal/server/authctx"
)

type UserHandler struct {
	Users     repository.Users
	Locations repository.Locations
}

func (h UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.me)
}

func (h UserHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/users", h.list)
	r.Post("/admin/users/{uid}/approve", h.approve)
	r.Post("/admin/users/{uid}/assign", h.assign)
}

func (h UserHandler) me(w http.ResponseWriter, r *http.Request) {
	current := authctx.FromContext(r.Context())
	if current == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.Users.Get(r.Context(), current.UID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userJSON(user))
}

func (h UserHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]map[string]any, 0, len(users))
	for _, u := range users {
		resp = append(resp, userJSON(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h UserHandler) approve(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req struct {
		Approved *bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved is required")
		return
	}
	if err := h.Users.SetApproval(r.Context(), uid, *req.Approved); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h UserHandler) assign(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req struct {
		EmployeeID         string `json:"employeeId"`
		AssignedLocationID string `json:"assignedLocationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.EmployeeID == "" || req.AssignedLocationID == "" {
		writeError(w, http.StatusBadRequest, "employeeId and assignedLocationId are required")
		return
	}

	// The assignment must reference an existing site, otherwise the
	// employee could never pass the geofence check.
	if _, err := h.Locations.Get(r.Context(), req.AssignedLocationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "assignedLocationId does not exist")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.Users.Assign(r.Context(), uid, req.EmployeeID, req.AssignedLocationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func userJSON(u *domain.User) map[string]any {
	return map[string]any{
		"uid":                u.UID,
		"name":               u.Name,
		"email":              u.Email,
		"phone":              u.Phone,
		"role":               string(u.Role),
		"approved":           u.Approved,
		"employeeId":         strOrNil(u.EmployeeID),
		"assignedLocationId": strOrNil(u.AssignedLocationID),
		"photoUrl":           u.PhotoURL,
	}
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
