package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

const tracerName = "github.com/Aleph-Alpha/vecmigrate/v1/transfer"

// Engine moves records from a Source to a Sink in bounded batches.
// An Engine holds no per-run state and may run several transfers concurrently.
type Engine struct {
	cfg      Config
	name     string
	logger   Logger
	observer observability.Observer
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for run and batch events.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the observer notified after every batch and every run.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithTracerProvider sets the provider used for run and batch spans.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithName labels the engine's logs, spans and metrics, e.g. "bulk_load" or "migration".
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// NewEngine creates an engine for cfg. The config is validated when a run starts;
// an invalid config yields a fatal result.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		name:   "transfer",
		logger: nopLogger{},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Transfer runs a single transfer with a default engine.
func Transfer(ctx context.Context, src Source, cfg Config, sink Sink) *Result {
	return NewEngine(cfg).Run(ctx, src, sink)
}

type runIDKey struct{}

// ContextWithRunID makes runs started with the returned context use id as their run
// ID instead of a fresh ULID. Callers use it to correlate external state, such as a
// migration marker, with the run.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// NewRunID returns a fresh, lexically sortable run ID.
func NewRunID() string {
	return ulid.Make().String()
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return NewRunID()
}

// Run drains src into sink and returns the outcome. It never returns a nil Result
// and never panics on sink or source errors; callers inspect Result.Status.
//
// Cancelling ctx stops pulling. In-flight submissions are awaited unless
// Config.AbandonOnCancel is set.
func (e *Engine) Run(ctx context.Context, src Source, sink Sink) *Result {
	cfg := e.cfg.withDefaults()
	res := &Result{
		RunID:     runIDFrom(ctx),
		StartedAt: time.Now(),
	}

	ctx, span := e.tracer.Start(ctx, "transfer.run", trace.WithAttributes(
		attribute.String("transfer.name", e.name),
		attribute.String("transfer.run_id", res.RunID),
		attribute.Int("transfer.max_batch_size", cfg.MaxBatchSize),
		attribute.Int("transfer.error_threshold", cfg.ErrorThreshold),
		attribute.Int("transfer.max_in_flight", cfg.MaxInFlight),
	))
	defer span.End()

	r := &run{
		engine:  e,
		cfg:     cfg,
		res:     res,
		results: make(chan batchResult, max(cfg.MaxInFlight, 1)),
		flying:  make(map[int][]pulled),
		acked:   make(map[int]int),
	}

	e.logger.Info("Transfer started", nil, map[string]interface{}{
		"name":            e.name,
		"run_id":          res.RunID,
		"max_batch_size":  cfg.MaxBatchSize,
		"error_threshold": cfg.ErrorThreshold,
		"max_in_flight":   cfg.MaxInFlight,
	})

	switch {
	case cfg.Validate() != nil:
		r.fail(cfg.Validate(), Record{})
	case src == nil || sink == nil:
		r.fail(fmt.Errorf("%w: source and sink are required", ErrInvalidConfig), Record{})
	default:
		if a, ok := src.(Acknowledger); ok {
			r.acker = a
		}
		r.execute(ctx, src, sink)
	}

	r.finish()

	span.SetAttributes(
		attribute.String("transfer.status", string(res.Status)),
		attribute.Int("transfer.success_count", res.SuccessCount),
		attribute.Int("transfer.failure_count", len(res.Failures)),
		attribute.Int("transfer.batches", res.Batches),
	)
	if res.Err != nil && res.Status != StatusExhausted {
		span.RecordError(res.Err)
		if res.Status == StatusFatal {
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}

	e.observeOperation("run", res.RunID, res.Duration(), res.Err, int64(res.Pulled), map[string]interface{}{
		"status":        string(res.Status),
		"success_count": res.SuccessCount,
		"failure_count": len(res.Failures),
		"batches":       res.Batches,
	})
	e.logResult(res)

	return res
}

func (e *Engine) logResult(res *Result) {
	fields := map[string]interface{}{
		"name":          e.name,
		"run_id":        res.RunID,
		"status":        string(res.Status),
		"success_count": res.SuccessCount,
		"failure_count": len(res.Failures),
		"pulled":        res.Pulled,
		"batches":       res.Batches,
		"duration_ms":   res.Duration().Milliseconds(),
	}
	switch res.Status {
	case StatusExhausted:
		e.logger.Info("Transfer finished", nil, fields)
	case StatusFatal:
		fields["committed"] = res.Committed
		e.logger.Error("Transfer aborted", res.Err, fields)
	default:
		e.logger.Warn("Transfer stopped early", res.Err, fields)
	}
}

// pulled is a record tagged with its position in the source.
type pulled struct {
	rec Record
	pos int
}

type pendingBatch struct {
	records []pulled
	// count is the number of source records consumed while assembling the batch,
	// including records that failed before submission.
	count int
}

type batchResult struct {
	index    int
	records  []pulled
	count    int
	outcomes []error
	err      error
}

type positionedFailure struct {
	Failure
	pos int
}

// run holds the mutable state of one Run call. Only the Run goroutine touches it;
// submission goroutines communicate through results.
type run struct {
	engine *Engine
	cfg    Config
	res    *Result
	status Status
	cause  error

	failures []positionedFailure
	fatal    Failure
	nextPos  int

	nextIndex int
	inFlight  int
	flying    map[int][]pulled
	results   chan batchResult

	acker    Acknowledger
	ackCtx   context.Context
	acked    map[int]int
	ackNext  int
	trailing int
}

func (r *run) execute(ctx context.Context, src Source, sink Sink) {
	submitCtx, cancelSubmits := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSubmits()
	r.ackCtx = submitCtx

	var limiter *rate.Limiter
	if r.cfg.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.BatchesPerSecond), 1)
	}

	for r.status == "" {
		r.collectReady()
		if r.status != "" {
			break
		}
		if err := ctx.Err(); err != nil {
			r.cancel(err)
			break
		}
		for r.inFlight >= r.cfg.MaxInFlight && r.status == "" {
			r.waitOne(ctx)
		}
		if r.status != "" {
			break
		}

		batch, exhausted := r.pull(ctx, src)
		// A trip inside pull still submits the batch holding the failure.
		if r.status != "" && r.status != StatusThresholdTripped {
			r.dropUnsubmitted(batch.records)
			break
		}
		if len(batch.records) > 0 {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					r.cancel(err)
					r.dropUnsubmitted(batch.records)
					break
				}
			}
			r.submit(submitCtx, sink, batch)
		} else {
			r.trailing += batch.count
		}
		if exhausted {
			break
		}
	}

	switch {
	case r.status == StatusFatal:
		cancelSubmits()
	case r.status == StatusCancelled && r.cfg.AbandonOnCancel:
		cancelSubmits()
		r.abandonInFlight()
	default:
		for r.inFlight > 0 && r.status != StatusFatal {
			r.merge(<-r.results)
		}
		if r.status == StatusFatal {
			cancelSubmits()
		}
	}

	if r.status == "" {
		r.status = StatusExhausted
	}
	if r.status != StatusFatal && r.trailing > 0 && r.ackNext == r.nextIndex {
		r.sendAck(r.trailing)
	}
}

// pull assembles the next batch. It reports exhausted once the source returned io.EOF.
func (r *run) pull(ctx context.Context, src Source) (pendingBatch, bool) {
	var b pendingBatch
	for len(b.records) < r.cfg.MaxBatchSize {
		if err := ctx.Err(); err != nil {
			r.cancel(err)
			return b, false
		}
		rec, err := src.Next(ctx)
		if err != nil {
			var recErr *RecordError
			var fatalErr *FatalError
			switch {
			case errors.Is(err, io.EOF):
				return b, true
			case errors.As(err, &recErr):
				b.count++
				r.res.Pulled++
				r.addFailure(pulled{rec: recErr.Record, pos: r.position()}, KindRecord, recErr.Err)
				if r.tripped() {
					return b, false
				}
				continue
			case errors.As(err, &fatalErr):
				r.fail(fatalErr.Err, fatalErr.Record)
			case ctx.Err() != nil:
				r.cancel(ctx.Err())
			default:
				r.fail(fmt.Errorf("source unreadable: %w", err), Record{})
			}
			return b, false
		}

		b.count++
		r.res.Pulled++
		p := pulled{rec: rec, pos: r.position()}
		if err := rec.Validate(); err != nil {
			r.addFailure(p, KindValidation, err)
			if r.tripped() {
				return b, false
			}
			continue
		}
		b.records = append(b.records, p)
	}
	return b, false
}

func (r *run) submit(ctx context.Context, sink Sink, b pendingBatch) {
	index := r.nextIndex
	r.nextIndex++
	r.inFlight++
	r.flying[index] = b.records

	batch := make(Batch, len(b.records))
	for i, p := range b.records {
		batch[i] = p.rec
	}

	e := r.engine
	runID := r.res.RunID
	timeout := r.cfg.SubmitTimeout
	go func() {
		start := time.Now()
		spanCtx, span := e.tracer.Start(ctx, "transfer.submit_batch", trace.WithAttributes(
			attribute.String("transfer.run_id", runID),
			attribute.Int("transfer.batch_index", index),
			attribute.Int("transfer.batch_size", len(batch)),
		))
		outcomes, err := submitWithTimeout(spanCtx, sink, batch, timeout)

		rejected := 0
		for _, o := range outcomes {
			if o != nil {
				rejected++
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("transfer.rejected", rejected))
		span.End()

		e.observeOperation("submit_batch", runID, time.Since(start), err, int64(len(batch)), map[string]interface{}{
			"batch_index": index,
			"rejected":    rejected,
		})

		r.results <- batchResult{index: index, records: b.records, count: b.count, outcomes: outcomes, err: err}
	}()
}

func submitWithTimeout(ctx context.Context, sink Sink, batch Batch, timeout time.Duration) ([]error, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		outcomes []error
		err      error
	}
	done := make(chan reply, 1)
	go func() {
		outcomes, err := sink.SubmitBatch(ctx, batch)
		done <- reply{outcomes: outcomes, err: err}
	}()

	select {
	case rep := <-done:
		if rep.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrSubmitTimeout, timeout, rep.err)
			}
			return nil, rep.err
		}
		if len(rep.outcomes) != len(batch) {
			return nil, fmt.Errorf("sink returned %d outcomes for %d records", len(rep.outcomes), len(batch))
		}
		return rep.outcomes, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrSubmitTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

// collectReady merges every submission that already finished without blocking.
func (r *run) collectReady() {
	for r.inFlight > 0 && r.status == "" {
		select {
		case br := <-r.results:
			r.merge(br)
		default:
			return
		}
	}
}

// waitOne blocks until one submission finishes or ctx is cancelled.
func (r *run) waitOne(ctx context.Context) {
	select {
	case br := <-r.results:
		r.merge(br)
	case <-ctx.Done():
		r.cancel(ctx.Err())
	}
}

func (r *run) merge(br batchResult) {
	r.inFlight--
	delete(r.flying, br.index)
	if r.status == StatusFatal {
		return
	}
	r.res.Batches++

	if br.err != nil {
		if errors.Is(br.err, ErrSinkUnavailable) && r.res.SuccessCount == 0 {
			r.fail(fmt.Errorf("destination unreachable before any progress: %w", br.err), Record{})
			return
		}
		batchErr := &BatchError{Index: br.index, Size: len(br.records), Err: br.err}
		for _, p := range br.records {
			r.addFailure(p, KindBatch, batchErr)
		}
		r.engine.logger.Warn("Batch rejected", br.err, map[string]interface{}{
			"run_id":      r.res.RunID,
			"batch_index": br.index,
			"batch_size":  len(br.records),
		})
	} else {
		for i, p := range br.records {
			if br.outcomes[i] == nil {
				r.res.SuccessCount++
				continue
			}
			r.addFailure(p, KindRecord, br.outcomes[i])
		}
	}

	r.ack(br.index, br.count)
	r.tripped()
}

// tripped moves the run to StatusThresholdTripped once failures exceed the threshold
// and reports whether the run is in that state.
func (r *run) tripped() bool {
	if r.status == "" && len(r.failures) > r.cfg.ErrorThreshold {
		r.status = StatusThresholdTripped
		r.cause = fmt.Errorf("%w: %d failures, threshold %d", ErrThresholdTripped, len(r.failures), r.cfg.ErrorThreshold)
	}
	return r.status == StatusThresholdTripped
}

func (r *run) ack(index, count int) {
	if r.acker == nil {
		return
	}
	r.acked[index] = count
	total := 0
	for {
		n, ok := r.acked[r.ackNext]
		if !ok {
			break
		}
		delete(r.acked, r.ackNext)
		r.ackNext++
		total += n
	}
	if total > 0 {
		r.sendAck(total)
	}
}

func (r *run) sendAck(n int) {
	if r.acker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ackCtx, r.cfg.SubmitTimeout)
	defer cancel()
	if err := r.acker.Ack(ctx, n); err != nil {
		r.engine.logger.Warn("Source acknowledgement failed", err, map[string]interface{}{
			"run_id":  r.res.RunID,
			"records": n,
		})
	}
}

func (r *run) position() int {
	p := r.nextPos
	r.nextPos++
	return p
}

func (r *run) addFailure(p pulled, kind FailureKind, err error) {
	r.failures = append(r.failures, positionedFailure{
		Failure: Failure{Record: p.rec, Kind: kind, Err: err},
		pos:     p.pos,
	})
}

func (r *run) fail(err error, rec Record) {
	var fatalErr *FatalError
	if !errors.As(err, &fatalErr) {
		fatalErr = &FatalError{Record: rec, Err: err}
	}
	r.status = StatusFatal
	r.cause = fatalErr
	r.fatal = Failure{Record: fatalErr.Record, Kind: KindFatal, Err: fatalErr}
}

func (r *run) cancel(err error) {
	if r.status != "" {
		return
	}
	r.status = StatusCancelled
	r.cause = fmt.Errorf("transfer cancelled: %w", err)
}

func (r *run) dropUnsubmitted(records []pulled) {
	if r.status == StatusFatal {
		return
	}
	for _, p := range records {
		r.addFailure(p, KindCancelled, ErrCancelled)
	}
}

func (r *run) abandonInFlight() {
	indexes := make([]int, 0, len(r.flying))
	for index := range r.flying {
		indexes = append(indexes, index)
	}
	slices.Sort(indexes)
	for _, index := range indexes {
		r.dropUnsubmitted(r.flying[index])
	}
	r.engine.logger.Warn("Abandoned in-flight batches", nil, map[string]interface{}{
		"run_id":  r.res.RunID,
		"batches": len(indexes),
	})
}

func (r *run) finish() {
	res := r.res
	res.Status = r.status
	res.Err = r.cause
	res.FinishedAt = time.Now()

	if r.status == StatusFatal {
		res.Committed = res.SuccessCount
		res.SuccessCount = 0
		res.Failures = []Failure{r.fatal}
		return
	}

	slices.SortStableFunc(r.failures, func(a, b positionedFailure) int {
		return a.pos - b.pos
	})
	res.Failures = make([]Failure, len(r.failures))
	for i, f := range r.failures {
		res.Failures[i] = f.Failure
	}
	res.Committed = res.SuccessCount
}
