package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine matches exactly one of these
// under errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid_input")
	ErrNotFound          = errors.New("not_found")
	ErrPersistence       = errors.New("persistence_error")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// Error is a coded failure of a known kind. Code is stable and safe to show.
type Error struct {
	Kind  error
	Code  string
	Field string
}

func (e *Error) Error() string { return e.Code }

func (e *Error) Unwrap() error { return e.Kind }

func invalid(code, field string) *Error {
	return &Error{Kind: ErrInvalidInput, Code: code, Field: field}
}

func NotFound(code string) *Error {
	return &Error{Kind: ErrNotFound, Code: code}
}

var (
	ErrInvalidID            = invalid("invalid_id", "id")
	ErrInvalidClient        = invalid("invalid_client_id", "client_id")
	ErrUnknownClient        = invalid("unknown_client", "client_id")
	ErrEmptyItems           = invalid("empty_items", "items")
	ErrInvalidDescription   = invalid("invalid_description", "items.description")
	ErrInvalidQuantity      = invalid("invalid_quantity", "items.quantity")
	ErrInvalidUnitPrice     = invalid("invalid_unit_price", "items.unit_price")
	ErrInvalidTaxRate       = invalid("invalid_tax_rate", "tax_rate")
	ErrInvalidDiscountType  = invalid("invalid_discount_type", "discount.type")
	ErrInvalidDiscountValue = invalid("invalid_discount_value", "discount.value")
	ErrInvalidStatus        = invalid("invalid_status", "status")
	ErrInvalidInitialStatus = invalid("invalid_initial_status", "status")
)

// TransitionError reports a status change the active policy refuses.
type TransitionError struct {
	Kind Kind
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError wraps a store failure. It unwraps to both ErrPersistence
// and the driver error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence_error: " + e.Op
	}
	return fmt.Sprintf("persistence_error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persistence classifies err for callers: engine kinds pass through untouched,
// anything else becomes a PersistenceError for op.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsKnown reports whether err already carries one of the engine kinds.
func IsKnown(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPersistence)
}
