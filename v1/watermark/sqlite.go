package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps markers in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens (and creates, if needed) the database at cfg.SQLitePath.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	path := cfg.SQLitePath
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, table: cfg.table()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source     TEXT NOT NULL,
			target     TEXT NOT NULL,
			run_id     TEXT NOT NULL,
			state      TEXT NOT NULL,
			processed  INTEGER NOT NULL DEFAULT 0,
			failed     INTEGER NOT NULL DEFAULT 0,
			reason     TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (source, target)
		)`, s.table))
	return err
}

func (s *SQLiteStore) Begin(ctx context.Context, source, target, runID string) (Mark, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (source, target, run_id, state, processed, failed, reason, started_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, '', ?, ?)
		ON CONFLICT (source, target) DO UPDATE SET
			run_id = excluded.run_id,
			state = excluded.state,
			processed = 0,
			failed = 0,
			reason = '',
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
		WHERE %s.state != ?`, s.table, s.table),
		source, target, runID, StateRunning, ts.UnixMicro(), ts.UnixMicro(), StateCompleted,
	)
	if err != nil {
		return Mark{}, fmt.Errorf("begin watermark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Mark{}, fmt.Errorf("begin watermark: %w", err)
	}
	if n == 0 {
		return Mark{}, fmt.Errorf("%w: %s -> %s", ErrAlreadyCompleted, source, target)
	}

	return Mark{
		Source:    source,
		Target:    target,
		RunID:     runID,
		State:     StateRunning,
		StartedAt: ts,
		UpdatedAt: ts,
	}, nil
}

func (s *SQLiteStore) Complete(ctx context.Context, source, target, runID string, processed, failed int) error {
	return s.finish(ctx, source, target, runID, StateCompleted, processed, failed, "")
}

func (s *SQLiteStore) Fail(ctx context.Context, source, target, runID, reason string) error {
	return s.finish(ctx, source, target, runID, StateFailed, 0, 0, reason)
}

func (s *SQLiteStore) finish(ctx context.Context, source, target, runID string, state State, processed, failed int, reason string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET state = ?, processed = ?, failed = ?, reason = ?, updated_at = ?
		WHERE source = ? AND target = ? AND run_id = ?`, s.table),
		state, processed, failed, reason, now().UnixMicro(), source, target, runID,
	)
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s -> %s run %s", ErrRunMismatch, source, target, runID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, source, target string) (Mark, error) {
	var (
		m                  Mark
		state              string
		started, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT source, target, run_id, state, processed, failed, reason, started_at, updated_at
		FROM %s WHERE source = ? AND target = ?`, s.table), source, target).Scan(
		&m.Source, &m.Target, &m.RunID, &state, &m.Processed, &m.Failed, &m.Reason, &started, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Mark{}, fmt.Errorf("%w: %s -> %s", ErrNotFound, source, target)
	}
	if err != nil {
		return Mark{}, fmt.Errorf("query watermark: %w", err)
	}
	m.State = State(state)
	m.StartedAt = time.UnixMicro(started).UTC()
	m.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return m, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
