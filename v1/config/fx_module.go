package config

import (
	"go.uber.org/fx"

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

// Module supplies every section of cfg under the type its package's FXModule expects.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	app := fx.New(config.Module(cfg), logger.FXModule, qdrant.FXModule)
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
		fx.Provide(
			func(c *Config) logger.Config { return c.Logger },
			func(c *Config) metrics.Config { return c.Metrics },
			func(c *Config) tracer.Config { return c.Tracer },
			func(c *Config) *qdrant.Config { q := c.Qdrant; return &q },
			func(c *Config) embedding.Config { return c.Embedding },
			func(c *Config) generative.Config { return c.Generative },
			func(c *Config) migration.Config { return c.Migration },
			func(c *Config) watermark.Config { return c.Watermark },
			func(c *Config) postgres.Config { return c.Postgres },
			func(c *Config) minio.Config { return c.Archive.Minio },
			func(c *Config) rabbit.Config { return c.Reports.Rabbit },
			func(c *Config) kafka.Config { return c.Kafka },
		),
	)
}
