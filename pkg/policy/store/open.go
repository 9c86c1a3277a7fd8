package store

import (
	"fmt"
	"log/slog"

	"mercator-hq/policyd/pkg/config"
)

// Open constructs the backend named by cfg.Backend.
func Open(cfg *config.StoreConfig, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "sqlite":
		return NewSQLiteStore(&SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, logger)

	case "redis":
		return NewRedisStore(&RedisConfig{
			Address:     cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Key:         cfg.Redis.Key,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
