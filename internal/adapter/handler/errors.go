package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, domain.ErrValidation):
		return "validation"

	case errors.Is(err, domain.ErrNotFound):
		return "not_found"

	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"

	case errors.Is(err, domain.ErrConflictExhausted):
		return "conflict_exhausted"

	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate_request"

	case errors.Is(err, domain.ErrProductExists):
		return "already_exists"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrProductExists):
		return http.StatusConflict

	case errors.Is(err, domain.ErrConflictExhausted):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Message hides internal error text from clients.
func Message(err error) string {
	if Kind(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}
