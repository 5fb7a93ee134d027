package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// RabbitClient publishes messages with publisher confirms and reconnects when the
// connection drops.
type RabbitClient struct {
	cfg Config

	channel *amqp.Channel
	conn    *amqp.Connection

	// mu protects conn and channel, which RetryConnection replaces.
	mu sync.RWMutex

	logger   Logger
	observer observability.Observer

	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
}

// NewClient connects to RabbitMQ and opens a confirm-mode channel.
//
// Example:
//
//	client, err := rabbit.NewClient(rabbit.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer client.GracefulShutdown()
func NewClient(config Config) (*RabbitClient, error) {
	con, err := newConnection(config)
	if err != nil {
		return nil, err
	}

	ch, err := connectToChannel(con, config)
	if err != nil {
		_ = con.Close()
		return nil, err
	}

	return &RabbitClient{
		cfg:            config,
		conn:           con,
		channel:        ch,
		shutdownSignal: make(chan struct{}),
	}, nil
}

// WithLogger attaches a logger for connection events.
func (rb *RabbitClient) WithLogger(logger Logger) *RabbitClient {
	rb.logger = logger
	return rb
}

// WithObserver attaches an observer notified about every publish.
func (rb *RabbitClient) WithObserver(observer observability.Observer) *RabbitClient {
	rb.observer = observer
	return rb
}

// connectToChannel opens a channel in confirm mode and declares the exchange when
// configured.
func connectToChannel(rb *amqp.Connection, cfg Config) (*amqp.Channel, error) {
	ch, err := rb.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if !cfg.Channel.DeclareExchange {
		return ch, nil
	}

	exchangeType := cfg.Channel.ExchangeType
	if exchangeType == "" {
		exchangeType = amqp.ExchangeTopic
	}
	err = ch.ExchangeDeclare(
		cfg.Channel.ExchangeName,
		exchangeType,
		true,  // Durable
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return ch, nil
}

// RetryConnection watches the connection and re-establishes it after it closed. It
// returns once GracefulShutdown was called.
func (rb *RabbitClient) RetryConnection(cfg Config) {
	ctx := context.Background()
	delay := time.Duration(cfg.Channel.DelayToReconnect) * time.Millisecond
	if delay <= 0 {
		delay = time.Second
	}

outerLoop:
	for {
		errChan := make(chan *amqp.Error, 1)
		rb.mu.RLock()
		rb.conn.NotifyClose(errChan)
		rb.mu.RUnlock()

		select {
		case <-rb.shutdownSignal:
			return

		case amqpErr := <-errChan:
			rb.logWarn(ctx, "RabbitMQ connection closed, reconnecting", amqpErrorOrNil(amqpErr), nil)
			for {
				select {
				case <-rb.shutdownSignal:
					return
				default:
				}

				newConn, err := newConnection(cfg)
				if err != nil {
					rb.logError(ctx, "RabbitMQ reconnection failed", err, map[string]interface{}{
						"will_retry_in": delay.String(),
					})
					time.Sleep(delay)
					continue
				}
				newChannel, err := connectToChannel(newConn, cfg)
				if err != nil {
					_ = newConn.Close()
					rb.logError(ctx, "Failed to re-establish RabbitMQ channel", err, nil)
					time.Sleep(delay)
					continue
				}

				rb.mu.Lock()
				rb.conn = newConn
				rb.channel = newChannel
				rb.mu.Unlock()

				rb.logInfo(ctx, "Successfully reconnected to RabbitMQ", map[string]interface{}{
					"host": cfg.Connection.Host,
				})
				continue outerLoop
			}
		}
	}
}

// amqpErrorOrNil keeps a nil *amqp.Error from turning into a non-nil error.
func amqpErrorOrNil(err *amqp.Error) error {
	if err == nil {
		return nil
	}
	return err
}

// newConnection dials the broker with a two second heartbeat. Three modes are
// supported: TLS with a client certificate, TLS with server authentication only, and
// plain AMQP.
func newConnection(cfg Config) (*amqp.Connection, error) {
	c := cfg.Connection
	amqpCfg := amqp.Config{Heartbeat: 2 * time.Second}
	scheme := "amqp"

	if c.IsSSLEnabled {
		scheme = "amqps"
		tlsConfig := &tls.Config{ServerName: c.ServerName}
		if c.CACertPath != "" {
			caCert, err := os.ReadFile(c.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA cert: %w", err)
			}
			caCertPool := x509.NewCertPool()
			caCertPool.AppendCertsFromPEM(caCert)
			tlsConfig.RootCAs = caCertPool
		}
		if c.UseCert {
			cert, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load client cert: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		amqpCfg.TLSClientConfig = tlsConfig
	}

	hostURL := fmt.Sprintf("%s://%v:%v@%v:%v", scheme, c.User, c.Password, c.Host, c.Port)
	conn, err := amqp.DialConfig(hostURL, amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

// GracefulShutdown stops the reconnection loop and closes the channel and connection.
func (rb *RabbitClient) GracefulShutdown() {
	rb.closeShutdownOnce.Do(func() {
		close(rb.shutdownSignal)
	})

	rb.mu.Lock()
	defer rb.mu.Unlock()

	ctx := context.Background()
	rb.logInfo(ctx, "Shutting down RabbitMQ client", nil)
	if rb.channel != nil {
		if err := rb.channel.Close(); err != nil {
			rb.logWarn(ctx, "Failed to close rabbit channel", err, nil)
		}
	}
	if rb.conn != nil && !rb.conn.IsClosed() {
		if err := rb.conn.Close(); err != nil {
			rb.logWarn(ctx, "Failed to close rabbit connection", err, nil)
		}
	}
}

func (rb *RabbitClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (rb *RabbitClient) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (rb *RabbitClient) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
