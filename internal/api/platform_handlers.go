package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/service"
)

func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.svc.ListPlatforms(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, platforms)
}

func (h *Handler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPlatform(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// AddPlatform responds with the platform and the key synthesized for it.
func (h *Handler) AddPlatform(w http.ResponseWriter, r *http.Request) {
	var req service.PlatformInput
	if !readJSON(w, r, &req) {
		return
	}
	p, key, err := h.svc.AddPlatform(r.Context(), tenantFrom(r.Context()), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, struct {
		Platform *model.Platform `json:"platform"`
		Key      *model.APIKey   `json:"key"`
	}{p, key})
}

func (h *Handler) UpdatePlatform(w http.ResponseWriter, r *http.Request) {
	var req service.PlatformPatch
	if !readJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePlatform(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) DisconnectPlatform(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DisconnectPlatform(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
