package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/internal/inventory"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusFor maps an error returned by the command or query bus to an HTTP
// status and an error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, es.ErrConcurrencyConflict):
		return http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, es.ErrAggregateNotFound), errors.Is(err, inventory.ErrItemNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, es.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, es.ErrBusinessRuleViolation):
		return http.StatusUnprocessableEntity, "business_rule_violation"
	case errors.Is(err, es.ErrInvalidEventBatch):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondFailure(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RespondError(c, status, code, err)
}
