package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultMinBytes     = 1
	DefaultMaxBytes     = 10e6
	DefaultMaxWait      = 500 * time.Millisecond
	DefaultIdleTimeout  = 10 * time.Second
	DefaultMaxAttempts  = 3
	DefaultWriteTimeout = 10 * time.Second
	DefaultStartOffset  = kafka.FirstOffset
)

// Config defines the connection and consumer/producer settings for a record topic.
type Config struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`

	// GroupID enables consumer-group offsets. Without it the source reads partition
	// Partition from StartOffset and acknowledgements are not persisted.
	GroupID   string `yaml:"group_id" env:"KAFKA_GROUP_ID"`
	Partition int    `yaml:"partition" env:"KAFKA_PARTITION"`

	MinBytes    int           `yaml:"min_bytes" env:"KAFKA_MIN_BYTES"`
	MaxBytes    int           `yaml:"max_bytes" env:"KAFKA_MAX_BYTES"`
	MaxWait     time.Duration `yaml:"max_wait" env:"KAFKA_MAX_WAIT"`
	StartOffset int64         `yaml:"start_offset" env:"KAFKA_START_OFFSET"`

	// IdleTimeout ends the source when no message arrived for this long. Negative
	// waits forever.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"KAFKA_IDLE_TIMEOUT"`

	MaxAttempts      int           `yaml:"max_attempts" env:"KAFKA_MAX_ATTEMPTS"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"KAFKA_WRITE_TIMEOUT"`
	CompressionCodec string        `yaml:"compression_codec" env:"KAFKA_COMPRESSION_CODEC"`

	TLS  TLSConfig  `yaml:"tls"`
	SASL SASLConfig `yaml:"sasl"`
}

// TLSConfig contains TLS settings for broker connections.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" env:"KAFKA_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path" env:"KAFKA_TLS_CA_CERT_PATH"`
	ClientCertPath     string `yaml:"client_cert_path" env:"KAFKA_TLS_CLIENT_CERT_PATH"`
	ClientKeyPath      string `yaml:"client_key_path" env:"KAFKA_TLS_CLIENT_KEY_PATH"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"KAFKA_TLS_INSECURE_SKIP_VERIFY"`
}

// SASLConfig contains SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `yaml:"enabled" env:"KAFKA_SASL_ENABLED"`
	Mechanism string `yaml:"mechanism" env:"KAFKA_SASL_MECHANISM"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `yaml:"username" env:"KAFKA_SASL_USERNAME"`
	Password  string `yaml:"password" env:"KAFKA_SASL_PASSWORD"`
}

func (c Config) withDefaults() Config {
	if c.MinBytes == 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.StartOffset == 0 {
		c.StartOffset = DefaultStartOffset
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Logger is the subset of the vecmigrate/v1/logger.Logger interface used here.
type Logger interface {
	Error(msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
