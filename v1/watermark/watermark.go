package watermark

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle state of a migration marker.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var (
	// ErrNotFound is returned by Get when no marker exists for the pair.
	ErrNotFound = errors.New("watermark: not found")
	// ErrAlreadyCompleted is returned by Begin when the pair was migrated before.
	ErrAlreadyCompleted = errors.New("watermark: migration already completed")
	// ErrRunMismatch is returned by Complete and Fail when the marker belongs to another run.
	ErrRunMismatch = errors.New("watermark: marker owned by another run")
	// ErrInvalidConfig is returned when the store configuration is unusable.
	ErrInvalidConfig = errors.New("watermark: invalid config")
)

// Mark records the state of the migration from Source to Target.
type Mark struct {
	Source    string
	Target    string
	RunID     string
	State     State
	Processed int
	Failed    int
	Reason    string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Done reports whether the migration finished.
func (m Mark) Done() bool {
	return m.State == StateCompleted
}

// Store persists migration markers. A pair has at most one marker; Begin replaces a
// running or failed marker and refuses to replace a completed one.
type Store interface {
	Begin(ctx context.Context, source, target, runID string) (Mark, error)
	Complete(ctx context.Context, source, target, runID string, processed, failed int) error
	Fail(ctx context.Context, source, target, runID, reason string) error
	Get(ctx context.Context, source, target string) (Mark, error)
	Close() error
}

// IsNotFound reports whether err means the pair has no marker.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyCompleted reports whether err means the pair was migrated before.
func IsAlreadyCompleted(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
