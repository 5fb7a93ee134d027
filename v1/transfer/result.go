package transfer

import "time"

// Status is the terminal state of a run.
type Status string

const (
	StatusExhausted        Status = "exhausted"
	StatusThresholdTripped Status = "threshold_tripped"
	StatusFatal            Status = "fatal"
	StatusCancelled        Status = "cancelled"
)

// FailureKind classifies a failed record.
type FailureKind string

const (
	// KindValidation is a malformed record, rejected before submission.
	KindValidation FailureKind = "validation"
	// KindRecord is a record rejected individually by the sink or the source.
	KindRecord FailureKind = "record"
	// KindBatch is a record whose whole batch was rejected.
	KindBatch FailureKind = "batch"
	// KindCancelled is a record pulled but left unsubmitted, or abandoned in flight,
	// when the run was cancelled.
	KindCancelled FailureKind = "cancelled"
	// KindFatal is the synthetic entry describing a fatal condition.
	KindFatal FailureKind = "fatal"
)

// Failure is one failed record with the reason it failed.
type Failure struct {
	Record Record
	Kind   FailureKind
	Err    error
}

// Reason returns the error description.
func (f Failure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result summarizes a finished run. It is immutable once returned.
type Result struct {
	// RunID identifies the run in logs, metrics and archived failures.
	RunID string

	Status Status

	// SuccessCount is the number of records the sink stored. It is zero for fatal runs.
	SuccessCount int

	// Failures lists failed records in source order.
	Failures []Failure

	// Pulled is the number of records read from the source.
	Pulled int

	// Batches is the number of batches whose outcome was merged.
	Batches int

	// Committed is the number of records stored before a fatal condition ended the run.
	// For non-fatal runs it equals SuccessCount.
	Committed int

	// Err describes why the run stopped; nil for exhausted runs.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// FailedRecords returns the records of all non-fatal failures, ready for a retry run.
func (r *Result) FailedRecords() []Record {
	records := make([]Record, 0, len(r.Failures))
	for _, f := range r.Failures {
		if f.Kind == KindFatal {
			continue
		}
		records = append(records, f.Record)
	}
	return records
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OK reports whether the source was drained.
func (r *Result) OK() bool {
	return r.Status == StatusExhausted
}
