package qdrant

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"go.uber.org/fx"
)

// FXModule provides *Adapter and vectordb.Service. Startup fails when the server does
// not pass its health check.
var FXModule = fx.Module("qdrant",
	fx.Provide(
		NewAdapterWithDI,
		func(a *Adapter) vectordb.Service { return a },
	),
	fx.Invoke(RegisterQdrantLifecycle),
)

// QdrantParams groups the dependencies of NewAdapterWithDI. Vectorizer and Generator
// are optional; without them similarity queries and Generate are rejected.
type QdrantParams struct {
	fx.In

	Config     *Config
	Logger     Logger                 `optional:"true"`
	Observer   observability.Observer `optional:"true"`
	Vectorizer Vectorizer             `optional:"true"`
	Generator  Generator              `optional:"true"`
}

// NewAdapterWithDI creates an Adapter from the dependencies in the container.
//
// Parameters:
//   - p: A QdrantParams struct carrying the Config and, when the corresponding
//     modules are part of the application, a Logger, Observer, Vectorizer and Generator.
//
// Returns:
//   - *Adapter: A connected adapter. The health check runs in RegisterQdrantLifecycle.
//   - error: When the gRPC client cannot be created from the configuration.
//
// Example usage with fx:
//
//	app := fx.New(
//	    qdrant.FXModule,
//	    embedding.FXModule,
//	    fx.Provide(
//	        func() *qdrant.Config { return &cfg.Qdrant },
//	        func(c *embedding.Client) qdrant.Vectorizer { return c },
//	    ),
//	)
func NewAdapterWithDI(p QdrantParams) (*Adapter, error) {
	var opts []Option
	if p.Logger != nil {
		opts = append(opts, WithLogger(p.Logger))
	}
	if p.Observer != nil {
		opts = append(opts, WithObserver(p.Observer))
	}
	if p.Vectorizer != nil {
		opts = append(opts, WithVectorizer(p.Vectorizer))
	}
	if p.Generator != nil {
		opts = append(opts, WithGenerator(p.Generator))
	}
	return NewAdapter(p.Config, opts...)
}

// RegisterQdrantLifecycle fails application start when the server is not ready and
// closes the gRPC connection on stop.
func RegisterQdrantLifecycle(lc fx.Lifecycle, adapter *Adapter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !adapter.IsReady(ctx) {
				return fmt.Errorf("[Qdrant] %s:%d: %w", adapter.cfg.Endpoint, adapter.cfg.port(), vectordb.ErrNotReady)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return adapter.Close()
		},
	})
}
