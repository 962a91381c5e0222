package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/screening"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var inputErr *screening.InputError
	var transientErr *screening.TransientError

	switch {
	case errors.As(err, &validationErr), errors.Is(err, ingestion.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, screening.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, screening.ErrCannotCancel), errors.Is(err, screening.ErrNotRetryable):
		return http.StatusConflict
	case errors.Is(err, screening.ErrNoResume), errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transientErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
