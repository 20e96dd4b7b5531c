package repository

import (
	"time"

	"github.com/okian/scoutnotes/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresLogger sets the logger used for schema bootstrap messages.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSchemaBootstrap controls whether NewPostgres creates the drafts table.
func WithSchemaBootstrap(enabled bool) PostgresOption {
	return func(s *PostgresStore) {
		s.bootstrap = enabled
	}
}
