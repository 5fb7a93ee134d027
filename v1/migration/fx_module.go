package migration

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/minio"
	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/rabbit"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/Aleph-Alpha/vecmigrate/v1/watermark"
)

// FXModule provides *Migrator. The failure archive, the report publisher and the
// watermark store are picked up when their modules are part of the application.
var FXModule = fx.Module("migration",
	fx.Provide(NewMigratorWithDI),
)

// MigrationParams groups the dependencies needed to create a Migrator.
type MigrationParams struct {
	fx.In

	Config         Config
	Service        vectordb.Service
	Store          watermark.Store        `optional:"true"`
	Archive        *minio.MinioClient     `optional:"true"`
	Reporter       *rabbit.Reporter       `optional:"true"`
	Logger         Logger                 `optional:"true"`
	Observer       observability.Observer `optional:"true"`
	TracerProvider trace.TracerProvider   `optional:"true"`
}

// NewMigratorWithDI creates a Migrator from the dependencies in the container.
// This function is designed to be used with Uber's fx dependency injection framework
// where dependencies are automatically provided via the MigrationParams struct.
//
// Parameters:
//   - p: A MigrationParams struct carrying the Config and the vectordb.Service, and
//     optionally the watermark store, failure archive, report publisher, logger,
//     observer and tracer provider.
//
// Returns:
//   - *Migrator: A Migrator wired with every optional component that was provided.
//   - error: ErrInvalidConfig when the configuration does not validate.
//
// Example usage with fx:
//
//	app := fx.New(
//	    config.Module(cfg),
//	    logger.FXModule,
//	    qdrant.FXModule,
//	    watermark.FXModule,
//	    migration.FXModule,
//	    minio.FXModule, // Optional: archives failed records
//	    fx.Invoke(func(m *migration.Migrator) {
//	        // use the migrator
//	    }),
//	)
func NewMigratorWithDI(p MigrationParams) (*Migrator, error) {
	var opts []Option
	if p.Archive != nil {
		opts = append(opts, WithArchiver(p.Archive))
	}
	if p.Reporter != nil {
		opts = append(opts, WithReporter(p.Reporter))
	}
	if p.Logger != nil {
		opts = append(opts, WithLogger(p.Logger))
	}
	if p.Observer != nil {
		opts = append(opts, WithObserver(p.Observer))
	}
	if p.TracerProvider != nil {
		opts = append(opts, WithTracerProvider(p.TracerProvider))
	}
	return NewMigrator(p.Config, p.Service, p.Store, opts...)
}
