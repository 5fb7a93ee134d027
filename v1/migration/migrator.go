package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/rabbit"
	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/Aleph-Alpha/vecmigrate/v1/watermark"
)

const tracerName = "github.com/Aleph-Alpha/vecmigrate/v1/migration"

// Archiver stores the failed records of a run. *minio.MinioClient implements it.
type Archiver interface {
	ArchiveFailures(ctx context.Context, res *transfer.Result) (string, error)
}

// ReportPublisher announces finished runs. *rabbit.Reporter implements it.
type ReportPublisher interface {
	Publish(ctx context.Context, report rabbit.Report) error
}

// Migrator runs bulk loads and migrations against a vector store.
type Migrator struct {
	cfg   Config
	db    vectordb.Service
	marks watermark.Store

	archiver Archiver
	reporter ReportPublisher
	logger   Logger
	observer observability.Observer
	tracer   trace.Tracer
	provider trace.TracerProvider
}

// Option customizes a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger for migration events. The same logger is handed to
// every transfer engine the Migrator starts, so batch rejections and run summaries
// end up next to the migration entries.
//
// Example:
//
//	log, _ := logger.NewLoggerClient(logger.Config{Level: "info", ServiceName: "vecmigrate"})
//	m, err := migration.NewMigrator(cfg, db, marks, migration.WithLogger(log))
func WithLogger(l Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithObserver reports every finished run as a "migration" operation and passes the
// observer on to the transfer engines, whose batch and run operations are reported
// under the "transfer" component.
func WithObserver(o observability.Observer) Option {
	return func(m *Migrator) { m.observer = o }
}

// WithArchiver stores failed records after every run when Config.ArchiveFailures is set.
func WithArchiver(a Archiver) Option {
	return func(m *Migrator) { m.archiver = a }
}

// WithReporter publishes a report after every run.
func WithReporter(r ReportPublisher) Option {
	return func(m *Migrator) { m.reporter = r }
}

// WithTracerProvider sets the provider used for migration and transfer spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Migrator) {
		if tp != nil {
			m.provider = tp
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// Outcome is the result of a bulk load or migration.
type Outcome struct {
	// Result is the transfer result. It is nil when the run was skipped.
	Result *transfer.Result

	// Skipped is set when a completed marker already existed for the pair.
	Skipped bool

	// Mark is the migration marker after the run. Bulk loads have none.
	Mark watermark.Mark

	// ArchiveKey locates the archived failures, empty when nothing was archived.
	ArchiveKey string
}

// NewMigrator validates cfg and returns a Migrator. marks may be nil, in which case
// Migrate refuses to run.
func NewMigrator(cfg Config, db vectordb.Service, marks watermark.Store, opts ...Option) (*Migrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrInvalidConfig)
	}
	m := &Migrator{
		cfg:    cfg,
		db:     db,
		marks:  marks,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the migration configuration.
func (m *Migrator) Config() Config {
	return m.cfg
}

// Bootstrap checks that the store is ready and creates the source and target
// collections when they are missing. A source created here is seeded when
// Config.SeedOnCreate is set; the seeding result is returned, nil otherwise.
func (m *Migrator) Bootstrap(ctx context.Context) (*Outcome, error) {
	if !m.db.IsReady(ctx) {
		return nil, vectordb.ErrNotReady
	}
	created, err := m.ensureCollection(ctx, m.cfg.Source)
	if err != nil {
		return nil, err
	}
	if _, err := m.ensureCollection(ctx, m.cfg.Target); err != nil {
		return nil, err
	}
	if !created || !m.cfg.SeedOnCreate || len(m.cfg.Seed) == 0 {
		return nil, nil
	}
	return m.Load(ctx, "seed", transfer.NewSliceSource(m.cfg.SeedRecords()), m.cfg.Source.Name), nil
}

func (m *Migrator) ensureCollection(ctx context.Context, schema vectordb.CollectionSchema) (bool, error) {
	exists, err := m.db.CollectionExists(ctx, schema.Name)
	if err != nil {
		return false, fmt.Errorf("check collection %q: %w", schema.Name, err)
	}
	if exists {
		return false, nil
	}
	err = m.db.CreateCollection(ctx, schema)
	switch {
	case vectordb.IsCollectionExists(err):
		// Created concurrently by another process.
		return false, nil
	case err != nil:
		return false, fmt.Errorf("create collection %q: %w", schema.Name, err)
	}
	m.logInfo(ctx, "Collection created", map[string]interface{}{
		"collection":         schema.Name,
		"replication_factor": schema.ReplicationFactor,
		"hybrid":             schema.Hybrid,
	})
	return true, nil
}

// Load bulk loads src into collection with the Load config. name labels the run in
// logs, metrics and reports, e.g. "seed" or "kafka_load".
func (m *Migrator) Load(ctx context.Context, name string, src transfer.Source, collection string) *Outcome {
	return m.run(ctx, name, src, vectordb.Sink(m.db, collection), "", collection)
}

// Export streams every record of collection, vectors included, into sink with the
// Load config.
func (m *Migrator) Export(ctx context.Context, collection string, sink transfer.Sink) *Outcome {
	return m.run(ctx, "export", m.db.Iterate(ctx, collection, true), sink, collection, "")
}

func (m *Migrator) run(ctx context.Context, name string, src transfer.Source, sink transfer.Sink, source, target string) *Outcome {
	ctx, span := m.tracer.Start(ctx, "migration."+name, trace.WithAttributes(
		attribute.String("migration.source", source),
		attribute.String("migration.target", target),
	))
	defer span.End()

	res := m.engine(name, m.cfg.Load).Run(ctx, src, sink)
	out := &Outcome{Result: res}
	m.finish(ctx, span, name, source, target, out)
	return out
}

// Migrate copies every record of the source collection to the target collection,
// keeping IDs and properties and reducing vectors to the slot chosen by
// Config.Vector.
//
// A completed marker for the pair skips the run. A running or failed marker is
// replaced and the copy restarts from the beginning of the source; writes are
// idempotent by ID. A run that does not exhaust the source, or stores none of the
// records it read, marks the pair failed and returns ErrRunFailed together with the
// outcome.
func (m *Migrator) Migrate(ctx context.Context) (*Outcome, error) {
	if m.marks == nil {
		return nil, fmt.Errorf("%w: watermark store is required", ErrInvalidConfig)
	}
	source, target := m.cfg.Source.Name, m.cfg.Target.Name

	ctx, span := m.tracer.Start(ctx, "migration.migrate", trace.WithAttributes(
		attribute.String("migration.source", source),
		attribute.String("migration.target", target),
	))
	defer span.End()

	if !m.db.IsReady(ctx) {
		return nil, vectordb.ErrNotReady
	}
	exists, err := m.db.CollectionExists(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", source, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vectordb.ErrCollectionNotFound, source)
	}
	if _, err := m.ensureCollection(ctx, m.cfg.Target); err != nil {
		return nil, err
	}

	runID := transfer.NewRunID()
	mark, err := m.marks.Begin(ctx, source, target, runID)
	if watermark.IsAlreadyCompleted(err) {
		mark, err = m.marks.Get(ctx, source, target)
		if err != nil {
			return nil, fmt.Errorf("read marker: %w", err)
		}
		m.logInfo(ctx, "Migration already completed, skipping", map[string]interface{}{
			"source":    source,
			"target":    target,
			"run_id":    mark.RunID,
			"processed": mark.Processed,
		})
		span.SetAttributes(attribute.Bool("migration.skipped", true))
		return &Outcome{Skipped: true, Mark: mark}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("begin marker: %w", err)
	}

	selector := transfer.SelectVector(m.db.Iterate(ctx, source, true), m.cfg.Vector)
	res := m.engine("migration", m.cfg.Migrate).Run(transfer.ContextWithRunID(ctx, runID), selector, vectordb.Sink(m.db, target))

	// Markers and reports are written even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)
	completed := migrated(res)
	if completed {
		err = m.marks.Complete(bg, source, target, runID, res.SuccessCount, len(res.Failures))
	} else {
		err = m.marks.Fail(bg, source, target, runID, failReason(res))
	}
	if err != nil {
		m.logError(ctx, "Failed to update migration marker", err, map[string]interface{}{
			"source": source,
			"target": target,
			"run_id": runID,
		})
	}
	if latest, getErr := m.marks.Get(bg, source, target); getErr == nil {
		mark = latest
	}

	out := &Outcome{Result: res, Mark: mark}
	span.SetAttributes(attribute.String("migration.vector", selector.Locked()))
	m.finish(bg, span, "migration", source, target, out)

	if !completed {
		return out, fmt.Errorf("%w: %s", ErrRunFailed, failReason(res))
	}
	return out, err
}

// migrated reports whether a run may mark the pair completed: the source was
// drained and, when anything failed, at least one record was stored.
func migrated(res *transfer.Result) bool {
	if res.Status != transfer.StatusExhausted {
		return false
	}
	return len(res.Failures) == 0 || res.SuccessCount > 0
}

func (m *Migrator) engine(name string, cfg transfer.Config) *transfer.Engine {
	opts := []transfer.Option{transfer.WithName(name), transfer.WithObserver(m.observer)}
	if m.logger != nil {
		opts = append(opts, transfer.WithLogger(m.logger))
	}
	if m.provider != nil {
		opts = append(opts, transfer.WithTracerProvider(m.provider))
	}
	return transfer.NewEngine(cfg, opts...)
}

// finish archives failures and publishes the run report. Errors are logged; the
// transfer result is what callers act on.
func (m *Migrator) finish(ctx context.Context, span trace.Span, name, source, target string, out *Outcome) {
	res := out.Result
	span.SetAttributes(
		attribute.String("migration.run_id", res.RunID),
		attribute.String("migration.status", string(res.Status)),
	)
	if res.Status == transfer.StatusFatal && res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	if m.archiver != nil && m.cfg.ArchiveFailures && len(res.FailedRecords()) > 0 {
		key, err := m.archiver.ArchiveFailures(ctx, res)
		if err != nil {
			m.logError(ctx, "Failed to archive failed records", err, map[string]interface{}{"run_id": res.RunID})
		} else {
			out.ArchiveKey = key
			m.logInfo(ctx, "Failed records archived", map[string]interface{}{
				"run_id":   res.RunID,
				"key":      key,
				"failures": len(res.Failures),
			})
		}
	}

	if m.reporter != nil {
		report := rabbit.NewReport(name, res)
		report.Source = source
		report.Target = target
		report.ArchiveKey = out.ArchiveKey
		if err := m.reporter.Publish(ctx, report); err != nil {
			m.logError(ctx, "Failed to publish run report", err, map[string]interface{}{"run_id": res.RunID})
		}
	}

	resource := target
	if resource == "" {
		resource = source
	}
	m.observeOperation(name, resource, res)
}

func failReason(res *transfer.Result) string {
	if res.Status == transfer.StatusExhausted && res.SuccessCount == 0 {
		return fmt.Sprintf("no record stored, %d failed", len(res.Failures))
	}
	if res.Err != nil {
		return fmt.Sprintf("%s: %s", res.Status, res.Err)
	}
	return string(res.Status)
}

// Query runs a similarity or hybrid query.
func (m *Migrator) Query(ctx context.Context, req vectordb.QueryRequest) ([]vectordb.QueryResult, error) {
	start := time.Now()
	results, err := m.db.Query(ctx, req)
	if err != nil {
		m.logError(ctx, "Query failed", err, map[string]interface{}{
			"collection": req.Collection,
			"mode":       string(req.Mode),
		})
		return nil, err
	}
	m.logInfo(ctx, "Query finished", map[string]interface{}{
		"collection":  req.Collection,
		"mode":        string(req.Mode),
		"results":     len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return results, nil
}

// Generate retrieves objects and generates one text per object.
func (m *Migrator) Generate(ctx context.Context, req vectordb.GenerateRequest) ([]vectordb.GeneratedResult, error) {
	results, err := m.db.Generate(ctx, req)
	if err != nil {
		m.logError(ctx, "Generate failed", err, map[string]interface{}{"collection": req.Collection})
		return nil, err
	}
	return results, nil
}

// DemoResults holds the answers to the sample queries.
type DemoResults struct {
	Collection string
	Similarity []vectordb.QueryResult
	Hybrid     []vectordb.QueryResult
	Generated  []vectordb.GeneratedResult
}

// Demo runs the configured sample queries against collection. Queries whose text is
// empty are skipped. Generation is skipped with a warning when the store has no
// generator configured.
func (m *Migrator) Demo(ctx context.Context, collection string) (*DemoResults, error) {
	demo := m.cfg.Demo
	limit := demo.Limit
	if limit <= 0 {
		limit = 2
	}
	out := &DemoResults{Collection: collection}

	var err error
	if demo.SimilarityText != "" {
		out.Similarity, err = m.Query(ctx, vectordb.QueryRequest{
			Collection: collection, Mode: vectordb.ModeSimilarity, Text: demo.SimilarityText, Limit: limit,
		})
		if err != nil {
			return nil, err
		}
	}
	if demo.HybridText != "" {
		out.Hybrid, err = m.Query(ctx, vectordb.QueryRequest{
			Collection: collection, Mode: vectordb.ModeHybrid, Text: demo.HybridText, Limit: limit,
		})
		if err != nil {
			return nil, err
		}
	}
	if demo.GenerateText != "" && demo.PromptTemplate != "" {
		out.Generated, err = m.Generate(ctx, vectordb.GenerateRequest{
			Collection: collection, Text: demo.GenerateText, PromptTemplate: demo.PromptTemplate, Limit: limit,
		})
		if errors.Is(err, vectordb.ErrNoGenerator) {
			m.logWarn(ctx, "Skipping generation, no generator configured", nil)
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Migrator) observeOperation(operation, collection string, res *transfer.Result) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveOperation(observability.OperationContext{
		Component:   "migration",
		Operation:   operation,
		Resource:    collection,
		SubResource: res.RunID,
		Duration:    res.Duration(),
		Error:       res.Err,
		Size:        int64(res.SuccessCount),
		Metadata: map[string]interface{}{
			"status":   string(res.Status),
			"failures": len(res.Failures),
		},
	})
}

func (m *Migrator) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (m *Migrator) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.WarnWithContext(ctx, msg, nil, fields)
	}
}

func (m *Migrator) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
