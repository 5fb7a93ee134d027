package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsRetryable(gorm.ErrRecordNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", gorm.ErrRecordNotFound)))
}

func TestRetryTransient(t *testing.T) {
	ctx := context.Background()

	t.Run("retries serialization failures", func(t *testing.T) {
		calls := 0
		err := retryTransient(ctx, 3, func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max tries", func(t *testing.T) {
		calls := 0
		err := retryTransient(ctx, 2, func() error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})
		assert.True(t, IsRetryable(err))
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors stop at once", func(t *testing.T) {
		calls := 0
		err := retryTransient(ctx, 3, func() error {
			calls++
			return fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
		})
		assert.True(t, IsUniqueViolation(err))
		assert.Equal(t, 1, calls)
	})
}

func TestConnectionDSN(t *testing.T) {
	c := Connection{Host: "db", Port: "5432", User: "u", Password: "p", DbName: "marks"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=marks sslmode=disable", c.DSN())

	c.SSLMode = "require"
	assert.Contains(t, c.DSN(), "sslmode=require")
}

func TestConnectionDetailsDefaults(t *testing.T) {
	d := ConnectionDetails{MaxIdleConns: 3}.withDefaults()
	assert.Equal(t, 50, d.MaxOpenConns)
	assert.Equal(t, 3, d.MaxIdleConns)
	assert.Equal(t, time.Minute, d.ConnMaxLifetime)
	assert.Equal(t, 10*time.Second, d.HealthCheckInterval)
}
