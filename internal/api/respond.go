package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
	"github.com/valu/keyrotation/internal/service"
	"github.com/valu/keyrotation/internal/workflow"
	"github.com/valu/keyrotation/pkg/errs"
	"github.com/valu/keyrotation/pkg/jsn"
)

// errorResponse maps a service error onto its HTTP status.
func errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		errs.FailedValidationResponse(w, r, verr.Field, verr.Message)
	case errors.Is(err, repository.ErrNotFound):
		errs.NotFoundResponse(w, r)
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, workflow.ErrWorkflowClosed),
		errors.Is(err, workflow.ErrOutOfOrder):
		errs.ConflictResponse(w, r, err)
	case errors.Is(err, workflow.ErrStepOutOfRange):
		errs.FailedValidationResponse(w, r, "step", err.Error())
	default:
		errs.ServerErrorResponse(w, r, err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := jsn.WriteJSON(w, status, data, nil); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to write response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := jsn.ReadJSON(w, r, dst); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Failed to read request")
		errs.BadRequestResponse(w, r, err)
		return false
	}
	return true
}
