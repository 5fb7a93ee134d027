package minio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// MinioClient stores transfer failures in an S3-compatible bucket.
type MinioClient struct {
	// client is swapped during reconnection without racing with concurrent operations.
	client atomic.Pointer[minio.Client]

	cfg      Config
	level    zstd.EncoderLevel
	observer observability.Observer
	logger   Logger

	shutdownSignal  chan struct{}
	reconnectSignal chan error

	closeShutdownOnce sync.Once
}

// NewClient connects to the object store, validates the connection and makes sure the
// configured bucket exists.
//
// Example:
//
//	client, err := minio.NewClient(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to initialize MinIO client: %w", err)
//	}
//	client = client.WithLogger(log)
//	defer client.GracefulShutdown()
func NewClient(cfg Config) (*MinioClient, error) {
	client, err := connectToMinio(cfg)
	if err != nil {
		return nil, err
	}

	m := &MinioClient{
		cfg:             cfg,
		level:           zstd.EncoderLevelFromZstd(compressionLevel(cfg.CompressionLevel)),
		shutdownSignal:  make(chan struct{}),
		reconnectSignal: make(chan error, 1),
	}
	m.client.Store(client)

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.validateConnection(timeoutCtx); err != nil {
		return nil, err
	}
	if err := m.ensureBucketExists(timeoutCtx); err != nil {
		return nil, err
	}
	return m, nil
}

// compressionLevel maps the 1..4 config scale onto zstd's native levels.
func compressionLevel(level int) int {
	switch level {
	case 1:
		return 1
	case 3:
		return 7
	case 4:
		return 11
	default:
		return 3
	}
}

// monitorConnection periodically checks the connection and triggers reconnecting if needed.
func (m *MinioClient) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(connectionHealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := m.validateConnection(checkCtx)
			cancel()

			if err != nil {
				m.logError(ctx, "MinIO connection health check failed", err, map[string]interface{}{
					"endpoint": m.cfg.Connection.Endpoint,
				})
				select {
				case m.reconnectSignal <- err:
				default:
				}
			}

		case <-m.shutdownSignal:
			return

		case <-ctx.Done():
			return
		}
	}
}

// retryConnection replaces the client after monitorConnection reported a failure.
func (m *MinioClient) retryConnection(ctx context.Context) {
outerLoop:
	for {
		select {
		case <-m.shutdownSignal:
			return

		case <-ctx.Done():
			return

		case err, ok := <-m.reconnectSignal:
			if !ok {
				return
			}
			m.logWarn(ctx, "MinIO connection issue detected, attempting reconnection", err, map[string]interface{}{
				"endpoint": m.cfg.Connection.Endpoint,
			})

			for {
				select {
				case <-m.shutdownSignal:
					return
				case <-ctx.Done():
					return
				default:
				}

				newClient, err := connectToMinio(m.cfg)
				if err == nil {
					ctxReconnect, cancel := context.WithTimeout(ctx, 10*time.Second)
					_, err = newClient.BucketExists(ctxReconnect, m.cfg.Connection.BucketName)
					cancel()
				}
				if err != nil {
					m.logError(ctx, "MinIO reconnection failed", err, map[string]interface{}{
						"endpoint":      m.cfg.Connection.Endpoint,
						"will_retry_in": "1s",
					})
					time.Sleep(time.Second)
					continue
				}

				m.client.Store(newClient)
				m.logInfo(ctx, "Successfully reconnected to MinIO", map[string]interface{}{
					"endpoint": m.cfg.Connection.Endpoint,
					"bucket":   m.cfg.Connection.BucketName,
				})
				continue outerLoop
			}
		}
	}
}

func connectToMinio(cfg Config) (*minio.Client, error) {
	if cfg.Connection.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint cannot be empty")
	}
	return minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
}

// validateConnection checks the configured bucket, so credentials do not need
// ListAllMyBuckets.
func (m *MinioClient) validateConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := m.client.Load()
	if c == nil {
		return ErrConnectionFailed
	}
	if bucket := m.cfg.Connection.BucketName; bucket != "" {
		_, err := c.BucketExists(ctx, bucket)
		return err
	}
	_, err := c.ListBuckets(ctx)
	return err
}

// ensureBucketExists creates the configured bucket when missing and allowed.
func (m *MinioClient) ensureBucketExists(ctx context.Context) error {
	bucketName := m.cfg.Connection.BucketName
	if bucketName == "" {
		return fmt.Errorf("bucket name is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := m.client.Load()
	if c == nil {
		return ErrConnectionFailed
	}

	exists, err := c.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists, bucket: %v, err: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if !m.cfg.Connection.AccessBucketCreation {
		return fmt.Errorf("bucket does not exist, please create it manually")
	}

	m.logInfo(ctx, "Bucket does not exist, creating it", map[string]interface{}{
		"bucket": bucketName,
		"region": m.cfg.Connection.Region,
	})
	return c.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: m.cfg.Connection.Region})
}

// GracefulShutdown stops the connection monitor.
func (m *MinioClient) GracefulShutdown() {
	m.closeShutdownOnce.Do(func() {
		close(m.shutdownSignal)
	})
}

// WithObserver attaches an observer notified about every archive operation.
func (m *MinioClient) WithObserver(observer observability.Observer) *MinioClient {
	m.observer = observer
	return m
}

// WithLogger attaches a logger for lifecycle and connection events.
func (m *MinioClient) WithLogger(logger Logger) *MinioClient {
	m.logger = logger
	return m
}

func (m *MinioClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (m *MinioClient) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (m *MinioClient) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
