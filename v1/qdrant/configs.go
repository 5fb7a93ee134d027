package qdrant

import (
	"context"
	"time"
)

// Config holds connection and behavior settings for the Qdrant adapter.
//
// Example (builder style):
//
//	cfg := qdrant.FromEndpoint("qdrant.internal").
//	    WithApiKey(os.Getenv("QDRANT_API_KEY")).
//	    WithTLS(true)
type Config struct {
	// Hostname of the Qdrant server, e.g. "localhost".
	Endpoint string `yaml:"endpoint" env:"QDRANT_ENDPOINT"`

	// gRPC port of the Qdrant server. Defaults to 6334.
	Port int `yaml:"port" env:"QDRANT_PORT"`

	// Optional authentication token for secured deployments.
	ApiKey string `yaml:"api_key" env:"QDRANT_API_KEY"`

	UseTLS bool `yaml:"use_tls" env:"QDRANT_USE_TLS"`

	// Number of gRPC connections kept by the SDK. Zero keeps the SDK default.
	PoolSize uint `yaml:"pool_size" env:"QDRANT_POOL_SIZE"`

	// Timeout bounds health checks and collection management calls.
	Timeout time.Duration `yaml:"timeout" env:"QDRANT_TIMEOUT"`

	// Keepalive ping interval and timeout in seconds. -1 disables keepalive.
	KeepAliveTime    int  `yaml:"keep_alive_time" env:"QDRANT_KEEP_ALIVE_TIME"`
	KeepAliveTimeout uint `yaml:"keep_alive_timeout" env:"QDRANT_KEEP_ALIVE_TIMEOUT"`

	// ScrollPageSize is the number of points fetched per cursor page.
	ScrollPageSize uint32 `yaml:"scroll_page_size" env:"QDRANT_SCROLL_PAGE_SIZE"`

	// Whether to perform version compatibility checks between client and server.
	CheckCompatibility bool `yaml:"check_compatibility" env:"QDRANT_CHECK_COMPATIBILITY"`
}

// DefaultConfig provides sensible defaults for a local instance.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:           "localhost",
		Port:               6334,
		Timeout:            5 * time.Second,
		ScrollPageSize:     100,
		CheckCompatibility: true,
	}
}

// FromEndpoint returns a default config pre-filled with a specific endpoint.
func FromEndpoint(host string) *Config {
	cfg := DefaultConfig()
	cfg.Endpoint = host
	return cfg
}

func (c *Config) WithApiKey(key string) *Config {
	c.ApiKey = key
	return c
}

func (c *Config) WithTLS(enabled bool) *Config {
	c.UseTLS = enabled
	return c
}

func (c *Config) WithTimeout(d time.Duration) *Config {
	c.Timeout = d
	return c
}

func (c *Config) WithScrollPageSize(n uint32) *Config {
	c.ScrollPageSize = n
	return c
}

func (c *Config) WithCompatibilityCheck(enabled bool) *Config {
	c.CheckCompatibility = enabled
	return c
}

func (c *Config) port() int {
	if c.Port == 0 {
		return 6334
	}
	return c.Port
}

func (c *Config) pageSize() uint32 {
	if c.ScrollPageSize == 0 {
		return 100
	}
	return c.ScrollPageSize
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// Logger is an interface that matches the vecmigrate/v1/logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Vectorizer turns texts into dense vectors. *embedding.Client implements it.
type Vectorizer interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator completes prompts. *generative.Client implements it.
type Generator interface {
	CompleteAll(ctx context.Context, prompts []string) ([]string, error)
}
