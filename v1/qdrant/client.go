package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
)

// Adapter implements vectordb.Service on top of the official Qdrant Go client.
//
// Collection schemas created through the adapter are cached and also stored in the
// collection metadata, so SubmitBatch can vectorize records and fill the lexical slot
// for collections created by another process.
type Adapter struct {
	api *qdrant.Client
	cfg *Config

	logger     Logger
	observer   observability.Observer
	vectorizer Vectorizer
	generator  Generator

	mu      sync.RWMutex
	schemas map[string]*vectordb.CollectionSchema
}

var _ vectordb.Service = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

func WithLogger(l Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func WithObserver(o observability.Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithVectorizer enables client-side vectorization on write and query.
func WithVectorizer(v Vectorizer) Option {
	return func(a *Adapter) { a.vectorizer = v }
}

// WithGenerator enables Generate.
func WithGenerator(g Generator) Option {
	return func(a *Adapter) { a.generator = g }
}

// NewAdapter creates the gRPC client. It does not contact the server; call IsReady
// before the first write or query.
//
// Example:
//
//	adapter, err := qdrant.NewAdapter(qdrant.DefaultConfig(), qdrant.WithVectorizer(embedder))
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
func NewAdapter(cfg *Config, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	api, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Endpoint,
		Port:                   cfg.port(),
		APIKey:                 cfg.ApiKey,
		UseTLS:                 cfg.UseTLS,
		PoolSize:               cfg.PoolSize,
		KeepAliveTime:          cfg.KeepAliveTime,
		KeepAliveTimeout:       cfg.KeepAliveTimeout,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] failed to initialize client: %w", err)
	}

	a := &Adapter{
		api:     api,
		cfg:     cfg,
		schemas: make(map[string]*vectordb.CollectionSchema),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// IsReady reports whether the server answers its health check within the configured
// timeout.
func (a *Adapter) IsReady(ctx context.Context) bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.timeout())
	defer cancel()

	resp, err := a.api.HealthCheck(ctx)
	a.observeOperation("health_check", "", start, err, 0)
	if err != nil {
		a.logWarn(ctx, "Qdrant health check failed", err, map[string]interface{}{
			"endpoint": a.cfg.Endpoint,
		})
		return false
	}
	a.logInfo(ctx, "Qdrant health check passed", map[string]interface{}{
		"title":    resp.GetTitle(),
		"version":  resp.GetVersion(),
		"endpoint": a.cfg.Endpoint,
	})
	return true
}

// Client returns the underlying Qdrant SDK client.
func (a *Adapter) Client() *qdrant.Client {
	return a.api
}

// Close releases the gRPC connections.
func (a *Adapter) Close() error {
	return a.api.Close()
}

func (a *Adapter) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (a *Adapter) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (a *Adapter) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
