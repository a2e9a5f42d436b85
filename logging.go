package store

import "time"

// MigrationLogEvent describes one migration table entry processed during
// readiness.
type MigrationLogEvent struct {
	BaseKey     string
	Key         string
	FromVersion uint64
	ToVersion   uint64
	Skipped     bool
	Duration    time.Duration
	Err         error
}

// MigrationLogger records migration events.
type MigrationLogger interface {
	LogMigration(MigrationLogEvent)
}

// MigrationLoggerFunc adapts a function to MigrationLogger.
type MigrationLoggerFunc func(MigrationLogEvent)

// LogMigration implements MigrationLogger.
func (f MigrationLoggerFunc) LogMigration(event MigrationLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopMigrationLogger struct{}

func (noopMigrationLogger) LogMigration(MigrationLogEvent) {}

// WithMigrationLogger attaches a migration logger to the store configuration.
// Logging never replaces error propagation: every failure still surfaces
// through the error return of Ready.
func WithMigrationLogger(logger MigrationLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopMigrationLogger{}
			return
		}
		cfg.logger = logger
	}
}
