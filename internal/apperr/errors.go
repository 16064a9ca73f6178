package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common cases; handlers map them to status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("product is not available")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError: malformed or out-of-range input. Field is optional.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
	}
	return "validation failed: " + e.Msg
}

func Validation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// InsufficientInventoryError carries remediation data so the client can
// clamp the requested quantity.
type InsufficientInventoryError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
	InCart      int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %s: requested=%d available=%d",
		e.ProductName, e.Requested, e.Available)
}

// InvalidTransitionError: order state machine violation.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// GatewayError wraps any failure talking to the payment provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func Gateway(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Err: err}
}
