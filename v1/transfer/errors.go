package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a Config cannot drive a run.
	ErrInvalidConfig = errors.New("transfer: invalid config")

	// ErrSinkUnavailable marks a sink error caused by the destination being unreachable.
	// Sinks wrap it so the engine can tell connectivity loss from rejected data.
	ErrSinkUnavailable = errors.New("transfer: sink unavailable")

	// ErrSubmitTimeout is returned when a submission exceeds Config.SubmitTimeout.
	ErrSubmitTimeout = errors.New("transfer: submission timed out")

	// ErrThresholdTripped is the cause attached to runs stopped by the error threshold.
	ErrThresholdTripped = errors.New("transfer: error threshold exceeded")

	// ErrCancelled is attached to records that were pulled but never acknowledged by
	// the sink because the run was cancelled.
	ErrCancelled = errors.New("transfer: cancelled before submission completed")

	// ErrVectorNotFound is a per-record error: the record has no vector in the selected slot.
	ErrVectorNotFound = errors.New("transfer: vector not found")

	// ErrInconsistentVectorKey is fatal: records of one run expose different vector slots.
	ErrInconsistentVectorKey = errors.New("transfer: inconsistent vector key")
)

// ValidationError reports a malformed record.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return "invalid record: " + e.Reason
	}
	return fmt.Sprintf("invalid record %s: %s", e.ID, e.Reason)
}

// RecordError is a failure attributed to one record. Sources return it from Next to
// report a record they could not produce without aborting the run.
type RecordError struct {
	Record Record
	Err    error
}

func (e *RecordError) Error() string { return e.Err.Error() }

func (e *RecordError) Unwrap() error { return e.Err }

// BatchError is a sink failure covering a whole batch. Every record of the batch is
// reported with the same BatchError.
type BatchError struct {
	Index int
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d records): %v", e.Index, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// FatalError terminates a run. Sources may return it from Next to abort the run with
// the offending record attached.
type FatalError struct {
	Record Record
	Err    error
}

func (e *FatalError) Error() string { return "fatal transfer error: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err terminated a run.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// IsThresholdTripped reports whether err is the threshold stop cause.
func IsThresholdTripped(err error) bool {
	return errors.Is(err, ErrThresholdTripped)
}

// IsSinkUnavailable reports whether err stems from an unreachable destination.
func IsSinkUnavailable(err error) bool {
	return errors.Is(err, ErrSinkUnavailable)
}
