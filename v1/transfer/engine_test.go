package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

func movies(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:         fmt.Sprintf("%d", i+1),
			Properties: map[string]any{"title": fmt.Sprintf("movie %d", i+1)},
		}
	}
	return records
}

// recordingSink stores records by ID and remembers every batch it saw.
type recordingSink struct {
	mu      sync.Mutex
	batches []Batch
	stored  map[string]Record
	reject  func(batchIndex int, rec Record) error
	fail    func(batchIndex int) error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{stored: make(map[string]Record)}
}

func (s *recordingSink) SubmitBatch(_ context.Context, batch Batch) ([]error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := len(s.batches)
	s.batches = append(s.batches, batch)
	if s.fail != nil {
		if err := s.fail(index); err != nil {
			return nil, err
		}
	}
	outcomes := make([]error, len(batch))
	for i, rec := range batch {
		if s.reject != nil {
			if err := s.reject(index, rec); err != nil {
				outcomes[i] = err
				continue
			}
		}
		s.stored[rec.ID] = rec
	}
	return outcomes, nil
}

func reasons(failures []Failure) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Record.ID + ":" + f.Reason()
	}
	return out
}

func TestRunAllRecordsSucceed(t *testing.T) {
	sink := newRecordingSink()

	res := Transfer(context.Background(), NewSliceSource(movies(5)), Config{MaxBatchSize: 100, ErrorThreshold: 10}, sink)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 5, res.SuccessCount)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 5, res.Pulled)
	assert.Equal(t, 1, res.Batches)
	assert.Len(t, sink.stored, 5)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.OK())
}

func TestRunPerRecordRejections(t *testing.T) {
	sink := newRecordingSink()
	sink.reject = func(_ int, rec Record) error {
		if rec.ID == "2" || rec.ID == "4" {
			return errors.New("duplicate key")
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(movies(5)), Config{MaxBatchSize: 100, ErrorThreshold: 10}, sink)

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, []string{"2:duplicate key", "4:duplicate key"}, reasons(res.Failures))
	for _, f := range res.Failures {
		assert.Equal(t, KindRecord, f.Kind)
	}
}

func TestRunThresholdTripsAfterFailingBatch(t *testing.T) {
	sink := newRecordingSink()
	sink.reject = func(batchIndex int, _ Record) error {
		if batchIndex == 1 {
			return errors.New("rejected")
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(movies(20)), Config{MaxBatchSize: 5, ErrorThreshold: 3}, sink)

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.True(t, IsThresholdTripped(res.Err))
	assert.Equal(t, 5, res.SuccessCount)
	assert.Len(t, res.Failures, 5)
	assert.Len(t, sink.batches, 2)
	assert.Equal(t, 10, res.Pulled)
}

func TestRunZeroThresholdStopsAfterFirstFailingBatch(t *testing.T) {
	sink := newRecordingSink()
	sink.reject = func(_ int, rec Record) error {
		if rec.ID == "7" {
			return errors.New("bad record")
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(movies(30)), Config{MaxBatchSize: 5, ErrorThreshold: 0}, sink)

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.Len(t, sink.batches, 2)
	assert.Equal(t, 9, res.SuccessCount)
	assert.Equal(t, []string{"7:bad record"}, reasons(res.Failures))
}

func TestRunBatchesAreBounded(t *testing.T) {
	for _, size := range []int{1, 3, 7, 50} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			sink := newRecordingSink()
			res := Transfer(context.Background(), NewSliceSource(movies(23)), Config{MaxBatchSize: size}, sink)

			require.Equal(t, StatusExhausted, res.Status)
			total := 0
			for _, b := range sink.batches {
				assert.GreaterOrEqual(t, len(b), 1)
				assert.LessOrEqual(t, len(b), size)
				total += len(b)
			}
			assert.Equal(t, 23, total)
			assert.Equal(t, 23, res.SuccessCount+len(res.Failures))
		})
	}
}

func TestRunValidationFailuresKeepSourceOrder(t *testing.T) {
	records := movies(6)
	records[1] = Record{ID: "empty"}
	records[4] = Record{ID: "nested", Properties: map[string]any{"genres": []string{"drama"}}}

	sink := newRecordingSink()
	sink.reject = func(_ int, rec Record) error {
		if rec.ID == "3" {
			return errors.New("duplicate key")
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(records), Config{MaxBatchSize: 2, ErrorThreshold: 10}, sink)

	require.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 3, res.SuccessCount)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "empty", res.Failures[0].Record.ID)
	assert.Equal(t, KindValidation, res.Failures[0].Kind)
	assert.Equal(t, "3", res.Failures[1].Record.ID)
	assert.Equal(t, "nested", res.Failures[2].Record.ID)

	var vErr *ValidationError
	assert.ErrorAs(t, res.Failures[2].Err, &vErr)
	for _, b := range sink.batches {
		for _, rec := range b {
			assert.NotEqual(t, "empty", rec.ID)
			assert.NotEqual(t, "nested", rec.ID)
		}
	}
}

func TestRunBatchErrorFailsWholeBatch(t *testing.T) {
	sink := newRecordingSink()
	sink.fail = func(batchIndex int) error {
		if batchIndex == 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(movies(9)), Config{MaxBatchSize: 3, ErrorThreshold: 10}, sink)

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 6, res.SuccessCount)
	require.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.Equal(t, KindBatch, f.Kind)
		assert.Equal(t, res.Failures[0].Reason(), f.Reason())
		var bErr *BatchError
		require.ErrorAs(t, f.Err, &bErr)
		assert.Equal(t, 1, bErr.Index)
	}
}

func TestRunUnavailableBeforeProgressIsFatal(t *testing.T) {
	sink := newRecordingSink()
	sink.fail = func(int) error {
		return fmt.Errorf("dial qdrant: %w", ErrSinkUnavailable)
	}

	res := Transfer(context.Background(), NewSliceSource(movies(10)), Config{MaxBatchSize: 5, ErrorThreshold: 100}, sink)

	assert.Equal(t, StatusFatal, res.Status)
	assert.True(t, IsFatal(res.Err))
	assert.True(t, IsSinkUnavailable(res.Err))
	assert.Equal(t, 0, res.SuccessCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, KindFatal, res.Failures[0].Kind)
	assert.Len(t, sink.batches, 1)
}

func TestRunUnavailableAfterProgressDegradesBatch(t *testing.T) {
	sink := newRecordingSink()
	sink.fail = func(batchIndex int) error {
		if batchIndex == 1 {
			return fmt.Errorf("dial qdrant: %w", ErrSinkUnavailable)
		}
		return nil
	}

	res := Transfer(context.Background(), NewSliceSource(movies(10)), Config{MaxBatchSize: 5, ErrorThreshold: 100}, sink)

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 5, res.SuccessCount)
	assert.Len(t, res.Failures, 5)
}

func TestRunUnreadableSourceIsFatal(t *testing.T) {
	records := movies(7)
	next := 0
	src := SourceFunc(func(ctx context.Context) (Record, error) {
		if next == 5 {
			return Record{}, errors.New("cursor expired")
		}
		rec := records[next]
		next++
		return rec, nil
	})
	sink := newRecordingSink()

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 2, ErrorThreshold: 10}, sink)

	assert.Equal(t, StatusFatal, res.Status)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 4, res.Committed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason(), "cursor expired")
}

func TestRunInvalidConfigIsFatal(t *testing.T) {
	res := Transfer(context.Background(), NewSliceSource(movies(1)), Config{MaxBatchSize: 0}, newRecordingSink())

	assert.Equal(t, StatusFatal, res.Status)
	assert.ErrorIs(t, res.Err, ErrInvalidConfig)
	assert.Len(t, res.Failures, 1)
}

func TestRunSubmitTimeoutIsBatchError(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(ctx context.Context, batch Batch) ([]error, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return make([]error, len(batch)), nil
	})

	res := Transfer(context.Background(), NewSliceSource(movies(4)), Config{
		MaxBatchSize:   2,
		ErrorThreshold: 10,
		SubmitTimeout:  20 * time.Millisecond,
	}, sink)

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures[0].Err, ErrSubmitTimeout)
	assert.Equal(t, KindBatch, res.Failures[0].Kind)
}

func TestRunSinkOutcomeCountMismatch(t *testing.T) {
	sink := SinkFunc(func(ctx context.Context, batch Batch) ([]error, error) {
		return nil, nil
	})

	res := Transfer(context.Background(), NewSliceSource(movies(3)), Config{MaxBatchSize: 3, ErrorThreshold: 10}, sink)

	assert.Equal(t, 0, res.SuccessCount)
	require.Len(t, res.Failures, 3)
	assert.Contains(t, res.Failures[0].Reason(), "0 outcomes for 3 records")
}

func TestRunCancellationBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newRecordingSink()
	sink.fail = func(batchIndex int) error {
		if batchIndex == 1 {
			cancel()
		}
		return nil
	}

	res := Transfer(ctx, NewSliceSource(movies(20)), Config{MaxBatchSize: 5, ErrorThreshold: 10}, sink)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 10, res.SuccessCount)
	assert.Empty(t, res.Failures)
	assert.Len(t, sink.batches, 2)
}

func TestRunAbandonOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)
	sink := SinkFunc(func(sctx context.Context, batch Batch) ([]error, error) {
		started <- struct{}{}
		select {
		case <-release:
		case <-sctx.Done():
		}
		return nil, errors.New("abandoned")
	})

	go func() {
		<-started
		cancel()
	}()

	res := Transfer(ctx, NewSliceSource(movies(3)), Config{
		MaxBatchSize:    3,
		ErrorThreshold:  10,
		AbandonOnCancel: true,
	}, sink)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, 0, res.SuccessCount)
	require.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.Equal(t, KindCancelled, f.Kind)
		assert.ErrorIs(t, f.Err, ErrCancelled)
	}
}

func TestRunConcurrentBatchesMergeInSourceOrder(t *testing.T) {
	sink := SinkFunc(func(ctx context.Context, batch Batch) ([]error, error) {
		// Later batches finish first.
		var first int
		_, _ = fmt.Sscanf(batch[0].ID, "%d", &first)
		time.Sleep(time.Duration(40-first) * time.Millisecond)
		outcomes := make([]error, len(batch))
		for i, rec := range batch {
			var id int
			_, _ = fmt.Sscanf(rec.ID, "%d", &id)
			if id%3 == 0 {
				outcomes[i] = fmt.Errorf("rejected %d", id)
			}
		}
		return outcomes, nil
	})

	res := Transfer(context.Background(), NewSliceSource(movies(30)), Config{
		MaxBatchSize:   4,
		ErrorThreshold: 100,
		MaxInFlight:    4,
	}, sink)

	require.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 20, res.SuccessCount)
	require.Len(t, res.Failures, 10)
	for i, f := range res.Failures {
		assert.Equal(t, fmt.Sprintf("%d", (i+1)*3), f.Record.ID)
	}
}

func TestRunConcurrentThresholdNeverUndercounts(t *testing.T) {
	sink := SinkFunc(func(ctx context.Context, batch Batch) ([]error, error) {
		outcomes := make([]error, len(batch))
		for i := range outcomes {
			outcomes[i] = errors.New("rejected")
		}
		return outcomes, nil
	})

	res := Transfer(context.Background(), NewSliceSource(movies(100)), Config{
		MaxBatchSize:   5,
		ErrorThreshold: 7,
		MaxInFlight:    3,
	}, sink)

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.Greater(t, len(res.Failures), 7)
	assert.Less(t, res.Pulled, 100)
}

func TestRunIsIdempotentForKeyedSinks(t *testing.T) {
	sink := newRecordingSink()
	records := movies(12)

	first := Transfer(context.Background(), NewSliceSource(records), Config{MaxBatchSize: 5}, sink)
	snapshot := make(map[string]Record, len(sink.stored))
	for k, v := range sink.stored {
		snapshot[k] = v
	}
	second := Transfer(context.Background(), NewSliceSource(records), Config{MaxBatchSize: 5}, sink)

	assert.Equal(t, first.SuccessCount, second.SuccessCount)
	assert.Equal(t, snapshot, sink.stored)
	assert.Len(t, sink.stored, 12)
}

type ackingSource struct {
	*SliceSource
	mu    sync.Mutex
	acked []int
}

func (s *ackingSource) Ack(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, n)
	return nil
}

func TestRunAcknowledgesInSourceOrder(t *testing.T) {
	records := movies(7)
	records[6] = Record{ID: "invalid"}
	src := &ackingSource{SliceSource: NewSliceSource(records)}

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 3, ErrorThreshold: 10, MaxInFlight: 2}, newRecordingSink())

	require.Equal(t, StatusExhausted, res.Status)
	total := 0
	for _, n := range src.acked {
		total += n
	}
	assert.Equal(t, 7, total)
}

func TestRunRecordErrorFromSource(t *testing.T) {
	records := movies(3)
	next := 0
	src := SourceFunc(func(ctx context.Context) (Record, error) {
		if next >= len(records) {
			return Record{}, io.EOF
		}
		rec := records[next]
		next++
		if rec.ID == "2" {
			return Record{}, &RecordError{Record: rec, Err: errors.New("undecodable payload")}
		}
		return rec, nil
	})

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 10, ErrorThreshold: 10}, newRecordingSink())

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, []string{"2:undecodable payload"}, reasons(res.Failures))
	assert.Equal(t, 3, res.Pulled)
}

func TestRunThresholdTripsOnValidationFailures(t *testing.T) {
	records := make([]Record, 5)
	for i := range records {
		records[i] = Record{ID: fmt.Sprintf("empty-%d", i)}
	}
	sink := newRecordingSink()

	res := Transfer(context.Background(), NewSliceSource(records), Config{MaxBatchSize: 100, ErrorThreshold: 0}, sink)

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.True(t, IsThresholdTripped(res.Err))
	assert.Equal(t, 1, res.Pulled)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, KindValidation, res.Failures[0].Kind)
	assert.Empty(t, sink.batches)
}

func TestRunThresholdTripSubmitsContainingBatch(t *testing.T) {
	records := movies(6)
	records[2] = Record{ID: "empty"}
	sink := newRecordingSink()

	res := Transfer(context.Background(), NewSliceSource(records), Config{MaxBatchSize: 10, ErrorThreshold: 0}, sink)

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.Equal(t, 3, res.Pulled)
	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "empty", res.Failures[0].Record.ID)
	assert.Equal(t, KindValidation, res.Failures[0].Kind)
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 2)
}

func TestRunThresholdTripsOnSourceRecordErrors(t *testing.T) {
	next := 0
	src := SourceFunc(func(ctx context.Context) (Record, error) {
		if next >= 50 {
			return Record{}, io.EOF
		}
		next++
		return Record{}, &RecordError{Record: Record{ID: fmt.Sprintf("%d", next)}, Err: errors.New("undecodable payload")}
	})

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 5, ErrorThreshold: 3}, newRecordingSink())

	assert.Equal(t, StatusThresholdTripped, res.Status)
	assert.Equal(t, 4, res.Pulled)
	assert.Len(t, res.Failures, 4)
	assert.Equal(t, 4, next)
}

func TestRunCancelledWhileSourceYieldsOnlyInvalidRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pulled := 0
	src := SourceFunc(func(ctx context.Context) (Record, error) {
		pulled++
		if pulled == 1000 {
			cancel()
		}
		return Record{}, nil
	})

	done := make(chan *Result, 1)
	go func() {
		done <- Transfer(ctx, src, Config{MaxBatchSize: 5, ErrorThreshold: 1 << 30}, newRecordingSink())
	}()

	select {
	case res := <-done:
		assert.Equal(t, StatusCancelled, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Equal(t, 1000, res.Pulled)
		assert.Len(t, res.Failures, 1000)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRunReportsToObserver(t *testing.T) {
	var mu sync.Mutex
	var ops []observability.OperationContext
	obs := observability.ObserverFunc(func(ctx observability.OperationContext) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, ctx)
	})

	engine := NewEngine(Config{MaxBatchSize: 2}, WithObserver(obs), WithName("bulk_load"))
	res := engine.Run(context.Background(), NewSliceSource(movies(5)), newRecordingSink())

	require.Equal(t, StatusExhausted, res.Status)
	require.Len(t, ops, 4)
	for _, op := range ops[:3] {
		assert.Equal(t, "transfer", op.Component)
		assert.Equal(t, "submit_batch", op.Operation)
		assert.Equal(t, "bulk_load", op.Resource)
		assert.Equal(t, res.RunID, op.SubResource)
	}
	assert.Equal(t, "run", ops[3].Operation)
	assert.Equal(t, int64(5), ops[3].Size)
	assert.Equal(t, "exhausted", ops[3].Metadata["status"])
}

func TestRunRateLimited(t *testing.T) {
	start := time.Now()
	res := Transfer(context.Background(), NewSliceSource(movies(3)), Config{MaxBatchSize: 1, BatchesPerSecond: 20}, newRecordingSink())

	require.Equal(t, StatusExhausted, res.Status)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestFailedRecordsSkipsFatalEntry(t *testing.T) {
	res := &Result{Failures: []Failure{
		{Record: Record{ID: "a"}, Kind: KindRecord},
		{Kind: KindFatal},
	}}
	assert.Equal(t, []Record{{ID: "a"}}, res.FailedRecords())
}

func TestRunUsesRunIDFromContext(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "01JAMIGRATION")
	res := Transfer(ctx, NewSliceSource(movies(2)), DefaultConfig(), newRecordingSink())
	assert.Equal(t, "01JAMIGRATION", res.RunID)

	other := Transfer(context.Background(), NewSliceSource(movies(2)), DefaultConfig(), newRecordingSink())
	assert.NotEqual(t, res.RunID, other.RunID)
	assert.Len(t, other.RunID, 26)
}
