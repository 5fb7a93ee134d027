package watermark

import "fmt"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the store backend.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"WATERMARK_DRIVER"`

	// SQLitePath is the database file for the sqlite driver. ":memory:" keeps
	// markers in process memory.
	SQLitePath string `yaml:"sqlite_path" env:"WATERMARK_SQLITE_PATH"`

	// Table names the marker table.
	Table string `yaml:"table" env:"WATERMARK_TABLE"`
}

// DefaultConfig stores markers in a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Driver:     DriverSQLite,
		SQLitePath: "data/vecmigrate.db",
		Table:      "vecmigrate_watermarks",
	}
}

func (c Config) table() string {
	if c.Table == "" {
		return "vecmigrate_watermarks"
	}
	return c.Table
}

// Validate checks the driver and its settings.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
	case DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}
