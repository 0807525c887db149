package domain

import (
	"context"
	"fmt"

	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"gorm.io/gorm"
)

// Number is one allocated document number.
type Number struct {
	Value     int64
	Formatted string
}

// Generator hands out document numbers. Next runs on tx so the allocation
// commits or rolls back together with the document that uses it.
type Generator interface {
	Next(ctx context.Context, tx *gorm.DB, kind docdomain.Kind) (Number, error)
}

var ErrContention = &docdomain.Error{Kind: docdomain.ErrPersistence, Code: "sequence_contention"}

// ContentionError reports a counter that kept moving during one transaction.
// It matches both ErrContention and db.ErrConflict, so an enclosing Transact
// starts the unit over with a fresh snapshot.
type ContentionError struct {
	Kind     docdomain.Kind
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts", ErrContention.Code, e.Kind, e.Attempts)
}

func (e *ContentionError) Unwrap() []error { return []error{ErrContention, db.ErrConflict} }
