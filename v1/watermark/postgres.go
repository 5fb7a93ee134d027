package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aleph-Alpha/vecmigrate/v1/postgres"
)

// markRow is the gorm model behind PostgresStore.
type markRow struct {
	Source    string `gorm:"primaryKey"`
	Target    string `gorm:"primaryKey"`
	RunID     string `gorm:"not null"`
	State     string `gorm:"not null"`
	Processed int
	Failed    int
	Reason    string
	StartedAt time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (r markRow) mark() Mark {
	return Mark{
		Source:    r.Source,
		Target:    r.Target,
		RunID:     r.RunID,
		State:     State(r.State),
		Processed: r.Processed,
		Failed:    r.Failed,
		Reason:    r.Reason,
		StartedAt: r.StartedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// PostgresStore keeps markers in a PostgreSQL table through gorm.
type PostgresStore struct {
	pg    *postgres.Postgres
	table string
}

// NewPostgresStore creates the marker table when missing.
func NewPostgresStore(ctx context.Context, pg *postgres.Postgres, cfg Config) (*PostgresStore, error) {
	if pg == nil {
		return nil, fmt.Errorf("%w: postgres driver requires a postgres client", ErrInvalidConfig)
	}
	s := &PostgresStore{pg: pg, table: cfg.table()}
	if err := s.db(ctx).AutoMigrate(&markRow{}); err != nil {
		return nil, fmt.Errorf("migrate watermark table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) db(ctx context.Context) *gorm.DB {
	return s.pg.WithContext(ctx).Table(s.table)
}

func (s *PostgresStore) Begin(ctx context.Context, source, target, runID string) (Mark, error) {
	ts := now()
	row := markRow{
		Source:    source,
		Target:    target,
		RunID:     runID,
		State:     string(StateRunning),
		StartedAt: ts,
		UpdatedAt: ts,
	}

	err := s.pg.TransactionWithRetry(ctx, func(tx *gorm.DB) error {
		var existing markRow
		err := tx.Table(s.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("source = ? AND target = ?", source, target).
			First(&existing).Error
		switch {
		case postgres.IsNotFound(err):
			return tx.Table(s.table).Create(&row).Error
		case err != nil:
			return err
		case existing.State == string(StateCompleted):
			return fmt.Errorf("%w: %s -> %s", ErrAlreadyCompleted, source, target)
		}
		return tx.Table(s.table).
			Where("source = ? AND target = ?", source, target).
			Select("*").
			Updates(&row).Error
	})
	if postgres.IsUniqueViolation(err) {
		// Another run inserted the marker first; report what it holds.
		existing, getErr := s.Get(ctx, source, target)
		if getErr == nil && existing.Done() {
			return Mark{}, fmt.Errorf("%w: %s -> %s", ErrAlreadyCompleted, source, target)
		}
		return Mark{}, fmt.Errorf("begin watermark: concurrent run for %s -> %s: %w", source, target, err)
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			return Mark{}, err
		}
		return Mark{}, fmt.Errorf("begin watermark: %w", err)
	}
	return row.mark(), nil
}

func (s *PostgresStore) Complete(ctx context.Context, source, target, runID string, processed, failed int) error {
	return s.finish(ctx, source, target, runID, map[string]interface{}{
		"state":      string(StateCompleted),
		"processed":  processed,
		"failed":     failed,
		"reason":     "",
		"updated_at": now(),
	})
}

func (s *PostgresStore) Fail(ctx context.Context, source, target, runID, reason string) error {
	return s.finish(ctx, source, target, runID, map[string]interface{}{
		"state":      string(StateFailed),
		"reason":     reason,
		"updated_at": now(),
	})
}

func (s *PostgresStore) finish(ctx context.Context, source, target, runID string, values map[string]interface{}) error {
	res := s.db(ctx).
		Where("source = ? AND target = ? AND run_id = ?", source, target, runID).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update watermark: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s -> %s run %s", ErrRunMismatch, source, target, runID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, source, target string) (Mark, error) {
	var row markRow
	err := s.db(ctx).Where("source = ? AND target = ?", source, target).First(&row).Error
	if postgres.IsNotFound(err) {
		return Mark{}, fmt.Errorf("%w: %s -> %s", ErrNotFound, source, target)
	}
	if err != nil {
		return Mark{}, fmt.Errorf("query watermark: %w", err)
	}
	return row.mark(), nil
}

// Close is a no-op; the postgres client owns the connection pool.
func (s *PostgresStore) Close() error {
	return nil
}
