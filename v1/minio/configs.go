package minio

import (
	"context"
	"time"
)

const connectionHealthCheckInterval = 30 * time.Second

// Config defines the top-level configuration for the failure archive.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	// Prefix is prepended to every archived object key.
	Prefix string `yaml:"prefix" env:"MINIO_ARCHIVE_PREFIX"`

	// CompressionLevel selects the zstd level: 1 fastest, 2 default, 3 better, 4 best.
	CompressionLevel int `yaml:"compression_level" env:"MINIO_ARCHIVE_COMPRESSION_LEVEL"`
}

// ConnectionConfig contains the parameters needed to reach the object store.
type ConnectionConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	Region          string `yaml:"region" env:"MINIO_REGION"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME"`

	// AccessBucketCreation allows the client to create a missing bucket.
	AccessBucketCreation bool `yaml:"access_bucket_creation" env:"MINIO_ACCESS_BUCKET_CREATION"`
}

// DefaultConfig targets a local MinIO with the "vecmigrate-failures" bucket.
func DefaultConfig() Config {
	return Config{
		Connection: ConnectionConfig{
			Endpoint:             "localhost:9000",
			BucketName:           "vecmigrate-failures",
			AccessBucketCreation: true,
		},
		Prefix:           "failures",
		CompressionLevel: 2,
	}
}

// Logger is the context-aware subset of the vecmigrate/v1/logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
