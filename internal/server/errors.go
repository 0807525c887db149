package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   "page_token",
				Code:    pagination.ErrInvalidPageToken.Error(),
				Message: "invalid page token",
			}},
		}
	}

	var coded *docdomain.Error
	hasCode := errors.As(err, &coded)

	switch {
	case errors.Is(err, docdomain.ErrInvalidInput):
		payload := errorPayload{
			Type:    "validation_error",
			Message: "validation error",
		}
		if hasCode {
			payload.Code = coded.Code
			payload.Errors = []ValidationError{{
				Field:   coded.Field,
				Code:    coded.Code,
				Message: "invalid value",
			}}
		}
		return http.StatusBadRequest, payload
	case errors.Is(err, docdomain.ErrNotFound), errors.Is(err, ErrNotFound):
		payload := errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
		if hasCode {
			payload.Code = coded.Code
		}
		return http.StatusNotFound, payload
	case errors.Is(err, docdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrInvoiceBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    paymentdomain.ErrInvoiceBusy.Code,
			Message: "invoice is busy, retry",
		}
	case errors.Is(err, docdomain.ErrPersistence), errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyError feeds the request logger the error type and code.
func classifyError(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
