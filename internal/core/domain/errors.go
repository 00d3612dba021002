package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflictExhausted = errors.New("conflict retries exhausted")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrProductExists     = errors.New("product already exists")
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string        { return "validation: " + e.Reason }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s %s not found", e.Resource, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConflictExhaustedError means every decrement attempt lost the version race.
// Nothing was taken for ProductID.
type ConflictExhaustedError struct {
	ProductID string
	Attempts  int
}

func (e *ConflictExhaustedError) Error() string {
	return fmt.Sprintf("product %s: stock still contended after %d attempts", e.ProductID, e.Attempts)
}

func (e *ConflictExhaustedError) Is(target error) bool { return target == ErrConflictExhausted }

// PartialReservationError wraps a failure that happened after stock was already
// decremented for some items of the same order. Those decrements are not reversed.
type PartialReservationError struct {
	Cause    error
	Reserved []Reservation
}

func (e *PartialReservationError) Error() string {
	return fmt.Sprintf("order failed after reserving %d item(s): %v", len(e.Reserved), e.Cause)
}

func (e *PartialReservationError) Unwrap() error { return e.Cause }

// FailedProductID returns the product a reservation failure refers to, if any.
func FailedProductID(err error) string {
	var notFound *NotFoundError
	var insufficient *InsufficientStockError
	var exhausted *ConflictExhaustedError

	switch {
	case errors.As(err, &insufficient):
		return insufficient.ProductID
	case errors.As(err, &exhausted):
		return exhausted.ProductID
	case errors.As(err, &notFound) && notFound.Resource == "product":
		return notFound.ID
	default:
		return ""
	}
}
