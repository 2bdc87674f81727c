package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/service"
	"github.com/valu/keyrotation/pkg/errs"
)

func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	status := model.WorkflowStatus(r.URL.Query().Get("status"))
	workflows, err := h.svc.ListWorkflows(r.Context(), tenantFrom(r.Context()), status)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, workflows)
}

func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.svc.GetWorkflow(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wf)
}

func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req service.WorkflowInput
	if !readJSON(w, r, &req) {
		return
	}
	wf, err := h.svc.StartWorkflow(r.Context(), tenantFrom(r.Context()), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, wf)
}

func (h *Handler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		errs.FailedValidationResponse(w, r, "step", "step must be a number")
		return
	}
	var req struct {
		Completed *bool `json:"completed"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		errs.FailedValidationResponse(w, r, "completed", "completed is required")
		return
	}
	wf, err := h.svc.AdvanceStep(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), step, *req.Completed)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wf)
}

func (h *Handler) FailWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.svc.FailWorkflow(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wf)
}

func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWorkflow(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
