package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inout-backend/internal/domain"
	"inout-backend/internal/tenant"
)

type TenantHandler struct {
	Manager *tenant.Manager

	// DefaultCompanyName fills the QR wrapper when the request does
	// not name the company explicitly.
	DefaultCompanyName string
}

func (h TenantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tenant/apply", h.apply)
}

func (h TenantHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/tenant/payload", h.createPayload)
	r.Post("/admin/tenant/qr", h.createQR)
	r.Get("/admin/tenant/payload", h.sharePayload)
	r.Get("/admin/tenant/qr", h.shareQR)
	r.Get("/admin/tenant/config", h.currentConfig)
}

type tenantEncodeRequest struct {
	BackendConfig json.RawMessage `json:"backendConfig"`
	CompanyName   string          `json:"companyName"`
	ProjectID     string          `json:"projectId"`
}

// encode validates the request and seals it into the opaque payload
// string carried by the QR symbol.
func (h TenantHandler) encode(w http.ResponseWriter, r *http.Request) (opaque, companyName, projectID string, ok bool) {
	var req tenantEncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", "", "", false
	}
	if len(req.BackendConfig) == 0 {
		writeError(w, http.StatusBadRequest, "backendConfig is required")
		return "", "", "", false
	}

	cfg, err := tenant.ParseBackendConfig(string(req.BackendConfig))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backend config")
		return "", "", "", false
	}

	companyName = req.CompanyName
	if companyName == "" {
		companyName = h.DefaultCompanyName
	}
	if companyName == "" {
		writeError(w, http.StatusBadRequest, "companyName is required")
		return "", "", "", false
	}
	projectID = req.ProjectID
	if projectID == "" {
		projectID = cfg.ProjectID
	}

	opaque, err = h.Manager.Codec.Encode(string(req.BackendConfig), companyName, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", "", "", false
	}
	return opaque, companyName, projectID, true
}

func (h TenantHandler) createPayload(w http.ResponseWriter, r *http.Request) {
	opaque, companyName, projectID, ok := h.encode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payload":     opaque,
		"companyName": companyName,
		"projectId":   projectID,
	})
}

func (h TenantHandler) createQR(w http.ResponseWriter, r *http.Request) {
	opaque, _, _, ok := h.encode(w, r)
	if !ok {
		return
	}
	png, err := tenant.RenderQR(opaque)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// shareEncode re-seals the currently applied tenant config so an
// admin can hand the running tenant to a new device.
func (h TenantHandler) shareEncode(w http.ResponseWriter) (string, bool) {
	payload, err := h.Manager.Store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	if payload == nil {
		writeError(w, http.StatusNotFound, "no tenant config applied")
		return "", false
	}
	opaque, err := h.Manager.Codec.Encode(payload.BackendConfigJSON, payload.CompanyName, payload.TenantProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	return opaque, true
}

func (h TenantHandler) sharePayload(w http.ResponseWriter, r *http.Request) {
	opaque, ok := h.shareEncode(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payload": opaque})
}

func (h TenantHandler) shareQR(w http.ResponseWriter, r *http.Request) {
	opaque, ok := h.shareEncode(w)
	if !ok {
		return
	}
	png, err := tenant.RenderQR(opaque)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h TenantHandler) currentConfig(w http.ResponseWriter, r *http.Request) {
	payload, err := h.Manager.Store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payload == nil {
		writeError(w, http.StatusNotFound, "no tenant config applied")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"companyName": payload.CompanyName,
		"projectId":   payload.TenantProjectID,
		"timestamp":   payload.Timestamp,
	})
}

type tenantApplyRequest struct {
	Payload string `json:"payload"`
}

func (h TenantHandler) apply(w http.ResponseWriter, r *http.Request) {
	var req tenantApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	payload, changed, err := h.Manager.Apply(r.Context(), req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDecryptionFailed),
			errors.Is(err, domain.ErrMalformedPayload),
			errors.Is(err, domain.ErrInvalidBackendConfig):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"companyName": payload.CompanyName,
		"projectId":   payload.TenantProjectID,
		"changed":     changed,
	})
}
