package api

import (
	"net/http"
	"strconv"

	"github.com/valu/keyrotation/pkg/errs"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports whether writes are currently going to the fallback.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.tiers.Status(r.Context())
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs.FailedValidationResponse(w, r, "limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	activities, err := h.svc.ListActivities(r.Context(), tenantFrom(r.Context()), limit)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, activities)
}
