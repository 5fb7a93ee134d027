package minio

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// FXModule provides *MinioClient and runs its connection monitor while the
// application is up.
var FXModule = fx.Module("minio",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterLifecycle),
)

// MinioParams groups the dependencies needed to create a MinIO client.
type MinioParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a MinIO client using dependency injection.
//
// Parameters:
//   - params: A MinioParams struct with the Config and an optional Logger and Observer.
//
// Returns:
//   - *MinioClient: A client whose bucket exists, ready to archive failures.
//   - error: When the connection or the bucket check fails.
func NewClientWithDI(params MinioParams) (*MinioClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	return client.WithLogger(params.Logger).WithObserver(params.Observer), nil
}

// MinioLifeCycleParams groups the dependencies for lifecycle management.
type MinioLifeCycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *MinioClient
}

// RegisterLifecycle starts the connection monitor and stops it on shutdown.
func RegisterLifecycle(params MinioLifeCycleParams) {
	wg := &sync.WaitGroup{}
	ctx, cancel := context.WithCancel(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(2)
			go func() {
				defer wg.Done()
				params.Client.monitorConnection(ctx)
			}()
			go func() {
				defer wg.Done()
				params.Client.retryConnection(ctx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			params.Client.GracefulShutdown()
			cancel()
			wg.Wait()
			return nil
		},
	})
}
