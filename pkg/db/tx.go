package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Transact runs fn in a transaction, starting over with a fresh transaction
// while fn fails with a retryable error. After maxAttempts the last error is
// returned wrapped in ErrAttemptsExhausted.
func Transact(ctx context.Context, conn *gorm.DB, maxAttempts int, fn func(tx *gorm.DB) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = conn.WithContext(ctx).Transaction(fn)
		if lastErr == nil {
			return nil
		}
		if !IsRetryableErr(lastErr) {
			return lastErr
		}
	}
	return &AttemptsExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

var ErrAttemptsExhausted = errors.New("attempts_exhausted")

type AttemptsExhaustedError struct {
	Attempts int
	Err      error
}

func (e *AttemptsExhaustedError) Error() string {
	return "attempts_exhausted: " + e.Err.Error()
}

func (e *AttemptsExhaustedError) Unwrap() []error {
	return []error{ErrAttemptsExhausted, e.Err}
}
