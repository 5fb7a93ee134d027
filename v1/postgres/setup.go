package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Logger is the subset of the vecmigrate/v1/logger.Logger interface used here.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Postgres is a wrapper around gorm.DB that provides connection monitoring and
// automatic reconnection.
//
// Concurrency: the active *gorm.DB pointer is stored in an atomic pointer and can be
// swapped during reconnection without blocking readers.
type Postgres struct {
	cfg             Config
	logger          Logger
	client          atomic.Pointer[gorm.DB]
	shutdownSignal  chan struct{}
	retryChanSignal chan error

	closeRetryChanOnce sync.Once
	closeShutdownOnce  sync.Once
}

// NewPostgres connects to the server described by cfg.
//
// Example:
//
//	pg, err := postgres.NewPostgres(postgres.Config{Connection: postgres.Connection{
//	    Host: "localhost", Port: "5432", User: "postgres", Password: "secret", DbName: "vecmigrate",
//	}}, log)
func NewPostgres(cfg Config, logger Logger) (*Postgres, error) {
	pg := &Postgres{
		cfg:             cfg,
		logger:          logger,
		shutdownSignal:  make(chan struct{}),
		retryChanSignal: make(chan error, 1),
	}
	conn, err := pg.connect()
	if err != nil {
		return nil, fmt.Errorf("error in connecting to postgres: %w", err)
	}
	pg.client.Store(conn)
	return pg, nil
}

// connect opens a gorm connection with error translation enabled and applies the pool
// settings.
func (p *Postgres) connect() (*gorm.DB, error) {
	database, err := gorm.Open(postgres.Open(p.cfg.Connection.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL database instance: %w", err)
	}

	details := p.cfg.ConnectionDetails.withDefaults()
	sqlDB.SetMaxOpenConns(details.MaxOpenConns)
	sqlDB.SetMaxIdleConns(details.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(details.ConnMaxLifetime)

	p.logInfo("Connected to PostgreSQL", map[string]interface{}{
		"host":   p.cfg.Connection.Host,
		"dbname": p.cfg.Connection.DbName,
	})
	return database, nil
}

// DB returns the current gorm handle. It may change after a reconnection, so callers
// should not cache it across operations.
func (p *Postgres) DB() *gorm.DB {
	return p.client.Load()
}

// WithContext returns the current gorm handle bound to ctx.
func (p *Postgres) WithContext(ctx context.Context) *gorm.DB {
	return p.DB().WithContext(ctx)
}

// RetryConnection reconnects whenever MonitorConnection reports a failed health check.
// It returns on shutdown or when ctx is done.
func (p *Postgres) RetryConnection(ctx context.Context) {
outerLoop:
	for {
		select {
		case <-p.shutdownSignal:
			return
		case <-ctx.Done():
			return
		case err, ok := <-p.retryChanSignal:
			if !ok {
				return
			}
			p.logError("PostgreSQL health check failed, reconnecting", err, nil)
			for {
				select {
				case <-p.shutdownSignal:
					return
				case <-ctx.Done():
					return
				default:
				}

				newConn, err := p.connect()
				if err != nil {
					p.logError("PostgreSQL reconnection failed", err, nil)
					time.Sleep(time.Second)
					continue
				}
				old := p.client.Swap(newConn)
				if old != nil {
					if sqlDB, err := old.DB(); err == nil {
						_ = sqlDB.Close()
					}
				}
				continue outerLoop
			}
		}
	}
}

// MonitorConnection pings the database periodically and signals RetryConnection on
// failure.
func (p *Postgres) MonitorConnection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ConnectionDetails.withDefaults().HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdownSignal:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.HealthCheck(ctx); err != nil {
				select {
				case p.retryChanSignal <- err:
				default:
				}
			}
		}
	}
}

// HealthCheck pings the database with a five second timeout.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	dbConn := p.DB()
	if dbConn == nil {
		return fmt.Errorf("database client is not initialized")
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance during health check: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed during health check: %w", err)
	}
	return nil
}

// GracefulShutdown stops the monitor loops and closes the connection pool.
func (p *Postgres) GracefulShutdown() error {
	p.closeShutdownOnce.Do(func() {
		close(p.shutdownSignal)
	})
	p.closeRetryChanOnce.Do(func() {
		close(p.retryChanSignal)
	})

	sqlDB, err := p.DB().DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func (p *Postgres) logInfo(msg string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, nil, fields)
	}
}

func (p *Postgres) logError(msg string, err error, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.Error(msg, err, fields)
	}
}
