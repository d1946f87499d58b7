package database

import (
	"context"
	"fmt"
	"log/slog"
)

// Supported preference store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a string key/value store for dashboard preferences
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Connect opens the preference store selected by driver
func Connect(ctx context.Context, driver, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch driver {
	case DriverMemory:
		logger.Info("using in-memory preference store")
		return NewMemoryStore(), nil
	case DriverSQLite:
		store, err := OpenSQLite(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown preference store driver %q", driver)
	}
}
