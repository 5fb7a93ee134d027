package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

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
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/Aleph-Alpha/vecmigrate/v1/watermark"
)

// Provider API keys read when a client section carries no key of its own.
const (
	EnvOpenAIKey = "OPENAI_APIKEY"
	EnvCohereKey = "COHERE_APIKEY"
)

var (
	// ErrInvalidConfig is returned when the loaded configuration is unusable.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrInvalidEnv is returned when an environment override cannot be parsed.
	ErrInvalidEnv = errors.New("config: invalid environment value")
)

// Config is the application configuration. Every section is the config of the
// package of the same name.
type Config struct {
	Logger     logger.Config     `yaml:"logger"`
	Metrics    metrics.Config    `yaml:"metrics"`
	Tracer     tracer.Config     `yaml:"tracer"`
	Qdrant     qdrant.Config     `yaml:"qdrant"`
	Embedding  embedding.Config  `yaml:"embedding"`
	Generative generative.Config `yaml:"generative"`
	Migration  migration.Config  `yaml:"migration"`
	Watermark  watermark.Config  `yaml:"watermark"`
	Postgres   postgres.Config   `yaml:"postgres"`
	Archive    ArchiveConfig     `yaml:"archive"`
	Reports    ReportsConfig     `yaml:"reports"`
	Kafka      kafka.Config      `yaml:"kafka"`
}

// ArchiveConfig enables the failure archive.
type ArchiveConfig struct {
	Enabled bool         `yaml:"enabled" env:"ARCHIVE_ENABLED"`
	Minio   minio.Config `yaml:",inline"`
}

// ReportsConfig enables run reports.
type ReportsConfig struct {
	Enabled bool          `yaml:"enabled" env:"REPORTS_ENABLED"`
	Rabbit  rabbit.Config `yaml:",inline"`
}

// Default returns the configuration used when no file is given: a local Qdrant,
// OpenAI models sized for the default collections, and a SQLite watermark.
func Default() *Config {
	emb := embedding.DefaultConfig()
	emb.Model = "text-embedding-3-large"
	emb.Dimensions = 1024

	return &Config{
		Logger: logger.Config{
			Level:       logger.Info,
			ServiceName: "vecmigrate",
			Encoding:    "json",
		},
		Metrics: metrics.Config{
			ServiceName: "vecmigrate",
			Namespace:   "vecmigrate",
		},
		Tracer: tracer.Config{
			ServiceName: "vecmigrate",
			AppEnv:      "development",
		},
		Qdrant:     *qdrant.DefaultConfig(),
		Embedding:  emb,
		Generative: generative.DefaultConfig(),
		Migration:  migration.DefaultConfig(),
		Watermark:  watermark.DefaultConfig(),
		Archive:    ArchiveConfig{Minio: minio.DefaultConfig()},
		Reports:    ReportsConfig{Rabbit: rabbit.DefaultConfig()},
		Kafka: kafka.Config{
			Brokers: []string{"localhost:9092"},
			Topic:   "vecmigrate.records",
			GroupID: "vecmigrate",
		},
	}
}

// Load builds the configuration in four steps:
//
//  1. envFiles (".env" when none are given) are loaded into the process environment.
//     Missing files are ignored and variables already set win.
//  2. path, when not empty, is decoded over Default(). Unknown keys are rejected.
//  3. Environment overrides are applied to every field with an env tag. A variable
//     prefixed with VECMIGRATE_ takes precedence over the bare name.
//  4. Missing API keys of the model clients fall back to OPENAI_APIKEY, or to
//     COHERE_APIKEY when the client endpoint points at Cohere.
//
// The result is validated before it is returned.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyProviderKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyProviderKeys() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = providerKey(c.Embedding.Endpoint)
	}
	if c.Generative.APIKey == "" {
		c.Generative.APIKey = providerKey(c.Generative.Endpoint)
	}
}

func providerKey(endpoint string) string {
	if strings.Contains(strings.ToLower(endpoint), "cohere") {
		return os.Getenv(EnvCohereKey)
	}
	return os.Getenv(EnvOpenAIKey)
}

// Validate checks the sections of the enabled components.
func (c *Config) Validate() error {
	if err := c.Migration.Validate(); err != nil {
		return fmt.Errorf("%w: migration: %w", ErrInvalidConfig, err)
	}
	if err := c.Watermark.Validate(); err != nil {
		return fmt.Errorf("%w: watermark: %w", ErrInvalidConfig, err)
	}
	if c.Qdrant.Endpoint == "" {
		return fmt.Errorf("%w: qdrant endpoint is required", ErrInvalidConfig)
	}
	if c.VectorizerEnabled() {
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("%w: embedding: %w", ErrInvalidConfig, err)
		}
		for _, schema := range []struct {
			name string
			dims uint64
		}{
			{c.Migration.Source.Name, firstSize(c.Migration.Source.Vectors)},
			{c.Migration.Target.Name, firstSize(c.Migration.Target.Vectors)},
		} {
			if d := c.Embedding.Dimensions; d > 0 && schema.dims > 0 && uint64(d) != schema.dims {
				return fmt.Errorf("%w: embedding dimensions %d do not match collection %q (%d)",
					ErrInvalidConfig, d, schema.name, schema.dims)
			}
		}
	}
	if c.GeneratorEnabled() {
		if err := c.Generative.Validate(); err != nil {
			return fmt.Errorf("%w: generative: %w", ErrInvalidConfig, err)
		}
	}
	if c.Watermark.Driver == watermark.DriverPostgres && c.Postgres.Connection.Host == "" {
		return fmt.Errorf("%w: postgres watermark requires postgres.host", ErrInvalidConfig)
	}
	if c.Archive.Enabled && c.Archive.Minio.Connection.Endpoint == "" {
		return fmt.Errorf("%w: archive requires an endpoint", ErrInvalidConfig)
	}
	return nil
}

// VectorizerEnabled reports whether an embedding API key is configured. Without one
// records must carry their vectors and similarity queries are rejected.
func (c *Config) VectorizerEnabled() bool {
	return c.Embedding.APIKey != ""
}

// GeneratorEnabled reports whether a generative API key is configured.
func (c *Config) GeneratorEnabled() bool {
	return c.Generative.APIKey != ""
}

func firstSize(vectors []vectordb.NamedVector) uint64 {
	if len(vectors) == 0 {
		return 0
	}
	return vectors[0].Size
}
