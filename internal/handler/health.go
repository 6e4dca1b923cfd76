package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthChecker is used to probe the document-store dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	Checker HealthChecker // nil for drivers without a probe
}

func (h HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.Checker != nil {
		if err := h.Checker.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
