package tracer

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/logger"
)

// FXModule provides *Tracer and the trace.TracerProvider it installs globally, and
// flushes pending spans on shutdown.
var FXModule = fx.Module("tracer",
	fx.Provide(
		func(cfg Config, log logger.Logger) (*Tracer, error) {
			return NewClient(cfg, log)
		},
		(*Tracer).Provider,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle shuts the tracer provider down when the application stops.
func RegisterTracerLifecycle(lc fx.Lifecycle, t *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			t.logger.Info("Shutting down tracer", nil)
			return t.Shutdown(ctx)
		},
	})
}
