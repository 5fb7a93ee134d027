package rabbit

import "context"

// Config defines the connection and exchange settings for the report publisher.
type Config struct {
	// Connection contains the settings needed to reach the RabbitMQ server.
	Connection Connection `yaml:"connection"`

	// Channel describes the exchange reports are published to.
	Channel Channel `yaml:"channel"`
}

// Connection contains the parameters needed to establish a connection to RabbitMQ,
// including authentication and TLS settings.
type Connection struct {
	Host     string `yaml:"host" env:"RABBITMQ_HOST"`
	Port     uint   `yaml:"port" env:"RABBITMQ_PORT"`
	User     string `yaml:"user" env:"RABBITMQ_USER"`
	Password string `yaml:"password" env:"RABBITMQ_PASSWORD"`

	// IsSSLEnabled switches to the amqps scheme.
	IsSSLEnabled bool `yaml:"is_ssl_enabled" env:"RABBITMQ_SSL_ENABLED"`

	// UseCert sends a client certificate for mutual TLS. Requires IsSSLEnabled.
	UseCert        bool   `yaml:"use_cert" env:"RABBITMQ_USE_CERT"`
	CACertPath     string `yaml:"ca_cert_path" env:"RABBITMQ_CA_CERT_PATH"`
	ClientCertPath string `yaml:"client_cert_path" env:"RABBITMQ_CLIENT_CERT_PATH"`
	ClientKeyPath  string `yaml:"client_key_path" env:"RABBITMQ_CLIENT_KEY_PATH"`
	ServerName     string `yaml:"server_name" env:"RABBITMQ_SERVER_NAME"`
}

// Channel contains the exchange settings.
type Channel struct {
	// ExchangeName is the exchange reports are published to.
	ExchangeName string `yaml:"exchange_name" env:"RABBITMQ_EXCHANGE_NAME"`

	// ExchangeType is used when DeclareExchange is set. Usually "topic".
	ExchangeType string `yaml:"exchange_type" env:"RABBITMQ_EXCHANGE_TYPE"`

	// RoutingKey prefixes the routing key; the run status is appended,
	// e.g. "vecmigrate.transfer.exhausted".
	RoutingKey string `yaml:"routing_key" env:"RABBITMQ_ROUTING_KEY"`

	// DeclareExchange declares a durable exchange on connect.
	DeclareExchange bool `yaml:"declare_exchange" env:"RABBITMQ_DECLARE_EXCHANGE"`

	// DelayToReconnect is the time in milliseconds between reconnection attempts.
	DelayToReconnect int `yaml:"delay_to_reconnect" env:"RABBITMQ_DELAY_TO_RECONNECT"`

	// ContentType is set on every published message.
	ContentType string `yaml:"content_type" env:"RABBITMQ_CONTENT_TYPE"`
}

// DefaultConfig publishes to a local broker's "vecmigrate" topic exchange.
func DefaultConfig() Config {
	return Config{
		Connection: Connection{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
		},
		Channel: Channel{
			ExchangeName:     "vecmigrate",
			ExchangeType:     "topic",
			RoutingKey:       "vecmigrate.transfer",
			DeclareExchange:  true,
			DelayToReconnect: 1000,
			ContentType:      "application/json",
		},
	}
}

// Logger is an interface that matches the vecmigrate/v1/logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
