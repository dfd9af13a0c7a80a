package persistence

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shvee-pandora/pnd-agents-sub001/config"
	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// New creates the snapshot store selected by the configuration.
func New(cfg config.SnapshotConfig, logger *zap.Logger) (workflow.SnapshotStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "snapshot_store"))

	switch cfg.Backend {
	case "memory":
		return workflow.NewMemorySnapshotStore(), nil

	case "file", "":
		store, err := NewFileSnapshotStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using file snapshot store", zap.String("path", cfg.Path))
		return store, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		store, err := NewRedisSnapshotStore(client, cfg.Key)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis snapshot store",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("key", cfg.Key),
		)
		return store, nil

	case "sqlite":
		store, err := NewSQLiteSnapshotStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite snapshot store", zap.String("path", cfg.Path))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}
