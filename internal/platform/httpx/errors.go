// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tradedesk/tradedesk/internal/shared"
)

// RespondError maps the shared error taxonomy to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteProblem(w, ProblemDetail{
			Type:     "validation",
			Title:    "Validation Failed",
			Status:   http.StatusUnprocessableEntity,
			Detail:   verr.Error(),
			Problems: verr.Problems,
		})
	case errors.Is(err, shared.ErrValidation):
		ProblemType(w, http.StatusUnprocessableEntity, "validation", "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		ProblemType(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		ProblemType(w, http.StatusConflict, "duplicate", "Duplicate", err.Error())
	case errors.Is(err, shared.ErrIllegalTransition):
		ProblemType(w, http.StatusConflict, "illegal_transition", "Illegal Transition", err.Error())
	case errors.Is(err, shared.ErrInsufficientData):
		ProblemType(w, http.StatusUnprocessableEntity, "insufficient_data", "Insufficient Data", err.Error())
	case errors.Is(err, shared.ErrExternalService):
		ProblemType(w, http.StatusBadGateway, "external_service", "External Service Failure", err.Error())
	default:
		ProblemType(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}

// RespondErrorLogged logs server-side failures before responding.
func RespondErrorLogged(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	if logger != nil && StatusOf(err) >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	}
	RespondError(w, err)
}

// StatusOf returns the status RespondError would use for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate), errors.Is(err, shared.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, shared.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
