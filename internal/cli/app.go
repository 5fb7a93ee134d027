package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/config"
	"github.com/Aleph-Alpha/vecmigrate/v1/embedding"
	"github.com/Aleph-Alpha/vecmigrate/v1/generative"
	"github.com/Aleph-Alpha/vecmigrate/v1/kafka"
	"github.com/Aleph-Alpha/vecmigrate/v1/logger"
	"github.com/Aleph-Alpha/vecmigrate/v1/metrics"
	"github.com/Aleph-Alpha/vecmigrate/v1/migration"
	"github.com/Aleph-Alpha/vecmigrate/v1/minio"
	"github.com/Aleph-Alpha/vecmigrate/v1/postgres"
	"github.com/Aleph-Alpha/vecmigrate/v1/qdrant"
	"github.com/Aleph-Alpha/vecmigrate/v1/rabbit"
	"github.com/Aleph-Alpha/vecmigrate/v1/tracer"
	"github.com/Aleph-Alpha/vecmigrate/v1/watermark"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 15 * time.Second
)

// components are the objects a command works with once the application started.
type components struct {
	fx.In

	Config   *config.Config
	Logger   *logger.LoggerClient
	Migrator *migration.Migrator
	Archive  *minio.MinioClient  `optional:"true"`
	Source   *kafka.RecordSource `optional:"true"`
	Sink     *kafka.RecordSink   `optional:"true"`
}

// appOptions returns the fx options for cfg. Optional components are only part of
// the application when their configuration enables them.
func appOptions(cfg *config.Config) []fx.Option {
	opts := []fx.Option{
		fx.NopLogger,
		config.Module(cfg),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		qdrant.FXModule,
		watermark.FXModule,
		migration.FXModule,
		fx.Provide(
			func(l *logger.LoggerClient) qdrant.Logger { return l },
			func(l *logger.LoggerClient) migration.Logger { return l },
			func(l *logger.LoggerClient) postgres.Logger { return l },
			func(l *logger.LoggerClient) minio.Logger { return l },
			func(l *logger.LoggerClient) rabbit.Logger { return l },
			func(l *logger.LoggerClient) kafka.Logger { return l },
		),
	}
	if cfg.VectorizerEnabled() {
		opts = append(opts, embedding.FXModule,
			fx.Provide(func(c *embedding.Client) qdrant.Vectorizer { return c }))
	}
	if cfg.GeneratorEnabled() {
		opts = append(opts, generative.FXModule,
			fx.Provide(func(c *generative.Client) qdrant.Generator { return c }))
	}
	if cfg.Watermark.Driver == watermark.DriverPostgres {
		opts = append(opts, postgres.FXModule)
	}
	if cfg.Archive.Enabled {
		opts = append(opts, minio.FXModule)
	}
	if cfg.Reports.Enabled {
		opts = append(opts, rabbit.FXModule)
	}
	return opts
}

// withApp loads the configuration, starts the application and calls run with its
// components. extra adds command specific modules, e.g. kafka.FXModule.
func withApp(ctx context.Context, flags *rootFlags, extra []fx.Option, run func(ctx context.Context, c components) error) (err error) {
	cfg, err := config.Load(flags.configPath, flags.envFiles...)
	if err != nil {
		return err
	}
	flags.apply(cfg)

	var c components
	opts := append(appOptions(cfg), extra...)
	opts = append(opts, fx.Invoke(func(in components) { c = in }))

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
			err = fmt.Errorf("stop application: %w", stopErr)
		}
	}()

	return run(ctx, c)
}
