package rabbit

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// FXModule is an fx.Module that provides the RabbitMQ client and the run reporter.
//
// The module provides:
// 1. *RabbitClient for direct publishing
// 2. *Reporter publishing transfer reports through the client
// 3. Lifecycle management for the reconnection loop and graceful shutdown
//
// Usage:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    fx.Provide(func() rabbit.Config { return cfg.Reports.Rabbit }),
//	)
var FXModule = fx.Module("rabbit",
	fx.Provide(
		NewClientWithDI,
		NewReporterWithDI,
	),
	fx.Invoke(RegisterRabbitLifecycle),
)

// RabbitParams groups the dependencies needed to create a Rabbit client.
type RabbitParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a new RabbitMQ client using dependency injection.
//
// Parameters:
//   - params: A RabbitParams struct that contains the Config instance
//     and optionally a Logger and Observer instance.
//
// Returns:
//   - *RabbitClient: A connected client with the optional logger and observer injected.
//   - error: The connection error when the broker cannot be reached.
//
// Example usage with fx:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    logger.FXModule,  // Optional: provides logger
//	    metrics.FXModule, // Optional: provides observer
//	    fx.Provide(func() rabbit.Config { return loadRabbitConfig() }),
//	)
func NewClientWithDI(params RabbitParams) (*RabbitClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	return client.WithLogger(params.Logger).WithObserver(params.Observer), nil
}

// NewReporterWithDI creates a Reporter whose routing keys start with the configured
// routing key, e.g. "vecmigrate.transfer.exhausted".
func NewReporterWithDI(client *RabbitClient, cfg Config) *Reporter {
	return NewReporter(client, cfg.Channel.RoutingKey)
}

// RabbitLifecycleParams groups the dependencies needed for RabbitMQ lifecycle management.
type RabbitLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *RabbitClient
	Config    Config
}

// RegisterRabbitLifecycle registers the RabbitMQ client with the fx lifecycle system.
//
// The function:
//  1. On application start: launches a goroutine that keeps the connection and
//     channel alive, reconnecting when the broker drops them.
//  2. On application stop: shuts the client down and waits for that goroutine.
func RegisterRabbitLifecycle(params RabbitLifecycleParams) {
	wg := &sync.WaitGroup{}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wg.Add(1)
			go func(cfg Config) {
				defer wg.Done()
				params.Client.RetryConnection(cfg)
			}(params.Config)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Client.GracefulShutdown()
			wg.Wait()
			return nil
		},
	})
}
