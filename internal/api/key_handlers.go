package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/valu/keyrotation/internal/inventory"
	"github.com/valu/keyrotation/internal/service"
)

// SearchKeys serves the key table: search, filters, sort and one page.
func (h *Handler) SearchKeys(w http.ResponseWriter, r *http.Request) {
	q, err := inventory.ParseQuery(r.URL.Query())
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	page, err := h.svc.SearchKeys(r.Context(), tenantFrom(r.Context()), q)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.GetKey(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, key)
}

func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req service.KeyInput
	if !readJSON(w, r, &req) {
		return
	}
	key, err := h.svc.CreateKey(r.Context(), tenantFrom(r.Context()), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, key)
}

func (h *Handler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	var req service.KeyPatch
	if !readJSON(w, r, &req) {
		return
	}
	key, err := h.svc.UpdateKey(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, key)
}

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteKey(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
