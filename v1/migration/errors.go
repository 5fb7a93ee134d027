package migration

import "errors"

var (
	// ErrInvalidConfig is returned when the migration configuration is unusable.
	ErrInvalidConfig = errors.New("migration: invalid config")

	// ErrRunFailed is returned by Migrate when the transfer did not exhaust the source.
	// The run result is returned alongside it.
	ErrRunFailed = errors.New("migration: run did not complete")
)

// IsRunFailed reports whether err means a migration stopped before the end of the
// source collection.
func IsRunFailed(err error) bool {
	return errors.Is(err, ErrRunFailed)
}
