package watermark

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/postgres"
)

// FXModule provides a Store for the configured driver and closes it on stop.
var FXModule = fx.Module("watermark",
	fx.Provide(NewStoreWithDI),
	fx.Invoke(RegisterWatermarkLifecycle),
)

// WatermarkParams groups the dependencies needed to create a Store. Postgres is only
// required by the postgres driver.
type WatermarkParams struct {
	fx.In

	Config   Config
	Postgres *postgres.Postgres `optional:"true"`
}

// NewStoreWithDI opens the store for the configured driver. See Open.
func NewStoreWithDI(params WatermarkParams) (Store, error) {
	return Open(context.Background(), params.Config, params.Postgres)
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, pg *postgres.Postgres) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverPostgres {
		return NewPostgresStore(ctx, pg, cfg)
	}
	return NewSQLiteStore(cfg)
}

func RegisterWatermarkLifecycle(lc fx.Lifecycle, store Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
}
