package postgres

import (
	"fmt"
	"time"
)

// Config defines the top-level configuration for PostgreSQL.
type Config struct {
	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`
}

// Connection contains the parameters needed to reach the server.
type Connection struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DbName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"ssl_mode" env:"POSTGRES_SSL_MODE"`
}

// ConnectionDetails tunes the connection pool and the health monitor. Zero values
// fall back to the package defaults.
type ConnectionDetails struct {
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME"`

	// HealthCheckInterval is the period of MonitorConnection pings.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"POSTGRES_HEALTH_CHECK_INTERVAL"`
}

// DSN renders the connection as a key/value connection string.
func (c Connection) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DbName, sslMode)
}

func (d ConnectionDetails) withDefaults() ConnectionDetails {
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 50
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 25
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Minute
	}
	if d.HealthCheckInterval == 0 {
		d.HealthCheckInterval = 10 * time.Second
	}
	return d
}
