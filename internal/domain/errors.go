package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the assistant.

// ErrNotFound indicates that no expense matched the edit/delete criteria.
type ErrNotFound struct {
	Resource string
	Amount   decimal.Decimal
	Category string
	Window   DateRange
}

func (e *ErrNotFound) Error() string {
	if e.Window.IsZero() {
		return fmt.Sprintf("%s not found: amount=%s category=%q", e.Resource, e.Amount, e.Category)
	}
	return fmt.Sprintf("%s not found: amount=%s category=%q window=[%s, %s)",
		e.Resource, e.Amount, e.Category,
		e.Window.Start.Format("2006-01-02T15:04:05Z07:00"), e.Window.End.Format("2006-01-02T15:04:05Z07:00"))
}

// ErrExternalService indicates a failure in an external service call
// (classifier or storage).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a missing or invalid structured field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnknownIntent indicates the classifier answered with a tag outside the
// known variant set.
type ErrUnknownIntent struct {
	Tag string
}

func (e *ErrUnknownIntent) Error() string {
	return fmt.Sprintf("unknown intent: %q", e.Tag)
}
