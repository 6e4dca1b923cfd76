package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inout-backend/internal/domain"
	"inout-backend/internal/repository"
)

type LocationHandler struct {
	Repo repository.Locations
}

func (h LocationHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/locations", h.list)
	r.Post("/admin/locations", h.create)
	r.Delete("/admin/locations/{id}", h.delete)
}

func (h LocationHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, l := range items {
		resp = append(resp, locationJSON(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h LocationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Latitude     *float64 `json:"latitude"`
		Longitude    *float64 `json:"longitude"`
		RadiusMeters *float64 `json:"radiusMeters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	// Coordinates are explicit optionals: a missing fix is nil, never
	// a zero sentinel.
	if req.Name == "" || req.Latitude == nil || req.Longitude == nil || req.RadiusMeters == nil {
		writeError(w, http.StatusBadRequest, "name, latitude, longitude and radiusMeters are required")
		return
	}

	loc := &domain.Location{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		RadiusMeters: *req.RadiusMeters,
	}
	if err := h.Repo.Create(r.Context(), loc); err != nil {
		if errors.Is(err, repository.ErrInvalidRadius) || errors.Is(err, repository.ErrInvalidCoordinate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, locationJSON(loc))
}

func (h LocationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func locationJSON(l *domain.Location) map[string]any {
	return map[string]any{
		"id":           l.ID,
		"name":         l.Name,
		"latitude":     l.Latitude,
		"longitude":    l.Longitude,
		"radiusMeters": l.RadiusMeters,
	}
}
