package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
)

// txMaxTries bounds TransactionWithRetry, first attempt included.
const txMaxTries = 3

// Transaction runs fn inside a database transaction. The transaction is rolled back
// when fn returns an error or panics and committed otherwise.
//
// Example:
//
//	err := pg.Transaction(ctx, func(tx *gorm.DB) error {
//	    if err := tx.Create(&mark).Error; err != nil {
//	        return err
//	    }
//	    return tx.Model(&other).Update("state", "done").Error
//	})
func (p *Postgres) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.WithContext(ctx).Transaction(fn)
}

// TransactionWithRetry is Transaction, repeated while it fails with a serialization
// failure or a deadlock (see IsRetryable). fn must be safe to run more than once.
//
// Parameters:
//   - ctx: bounds every attempt and the waits between them
//   - fn: the transaction body
//
// Returns the error of the last attempt, or nil once an attempt commits.
func (p *Postgres) TransactionWithRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return retryTransient(ctx, txMaxTries, func() error {
		return p.Transaction(ctx, fn)
	})
}

func retryTransient(ctx context.Context, tries uint, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithMaxTries(tries), backoff.WithBackOff(backoff.NewConstantBackOff(25*time.Millisecond)))
	return err
}
