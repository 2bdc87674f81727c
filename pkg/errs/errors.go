// Package errs writes the JSON error bodies every endpoint shares.
package errs

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/valu/keyrotation/pkg/jsn"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ErrorResponseWithDetails struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func SendErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	err := jsn.WriteJSON(w, status, ErrorResponse{Error: message}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func SendErrorResponseWithDetails(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]any) {
	err := jsn.WriteJSON(w, status, ErrorResponseWithDetails{Error: message, Details: details}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// ServerErrorResponse logs err with the request logger and hides it from
// the client.
func ServerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	message := "the server encountered a problem, please try again later"
	SendErrorResponse(w, r, http.StatusInternalServerError, message)
}

func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	SendErrorResponse(w, r, http.StatusNotFound, message)
}

func MethodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	SendErrorResponse(w, r, http.StatusMethodNotAllowed, message)
}

func BadRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	SendErrorResponse(w, r, http.StatusBadRequest, err.Error())
}

// FailedValidationResponse names the offending field in details.field.
func FailedValidationResponse(w http.ResponseWriter, r *http.Request, field, message string) {
	SendErrorResponseWithDetails(w, r, http.StatusBadRequest, message, map[string]any{"field": field})
}

func ConflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	SendErrorResponse(w, r, http.StatusConflict, err.Error())
}
