package postgres

import (
	"context"
	"sync"

	"go.uber.org/fx"
)

// FXModule provides *Postgres and runs the connection monitor while the application
// is up.
var FXModule = fx.Module("postgres",
	fx.Provide(NewPostgresClientWithDI),
	fx.Invoke(RegisterPostgresLifecycle),
)

// PostgresParams groups the dependencies needed to create a Postgres client.
type PostgresParams struct {
	fx.In

	Config Config
	Logger Logger `optional:"true"`
}

// NewPostgresClientWithDI creates a Postgres client from the injected Config and
// optional Logger.
//
// Example usage with fx:
//
//	app := fx.New(
//	    postgres.FXModule,
//	    watermark.FXModule, // uses *postgres.Postgres when driver is "postgres"
//	    fx.Provide(func() postgres.Config { return cfg.Postgres }),
//	)
func NewPostgresClientWithDI(params PostgresParams) (*Postgres, error) {
	return NewPostgres(params.Config, params.Logger)
}

// PostgresLifeCycleParams groups the dependencies for lifecycle management.
type PostgresLifeCycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Postgres  *Postgres
}

// RegisterPostgresLifecycle starts MonitorConnection and RetryConnection on start
// and waits for both before closing the pool on stop.
func RegisterPostgresLifecycle(params PostgresLifeCycleParams) {
	wg := &sync.WaitGroup{}
	monitorCtx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(2)
			go func() {
				defer wg.Done()
				params.Postgres.MonitorConnection(monitorCtx)
			}()
			go func() {
				defer wg.Done()
				params.Postgres.RetryConnection(monitorCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			wg.Wait()
			return params.Postgres.GracefulShutdown()
		},
	})
}
