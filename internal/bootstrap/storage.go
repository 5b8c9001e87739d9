package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/target/inventory-console/config"
	"github.com/target/inventory-console/internal/adapters/kvstore"
	"github.com/target/inventory-console/internal/adapters/postgres"
	redisstore "github.com/target/inventory-console/internal/adapters/redis"
	"github.com/target/inventory-console/internal/ports"
)

// Store is the session store selected by configuration plus whatever
// connections back it.
type Store struct {
	KV      ports.KeyValueStore
	Backend config.StorageBackend

	closers []io.Closer
}

// Close releases the backing connections.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreDeps groups dependencies for OpenStore.
type StoreDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// OpenStore builds the configured session store. Connection failures at startup
// are returned; once running, the store degrades to absent/no-op on errors.
func OpenStore(ctx context.Context, deps StoreDeps) (*Store, error) {
	if deps.Config == nil {
		return nil, errors.New("store config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	backend := cfg.Storage.Backend

	switch backend {
	case config.StorageMemory:
		return &Store{KV: kvstore.NewMemory(), Backend: backend}, nil

	case config.StorageNone:
		logger.WarnContext(ctx, "session storage disabled; sessions will not survive a restart")
		return &Store{KV: kvstore.Unavailable{}, Backend: backend}, nil

	case config.StorageRedis:
		client, err := connectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("open redis session store: %w", err)
		}
		return &Store{
			KV:      redisstore.NewKVStore(redisstore.KVStoreOptions{Client: client, Prefix: cfg.Storage.KeyPrefix, Logger: logger}),
			Backend: backend,
			closers: []io.Closer{client},
		}, nil

	case config.StoragePostgres:
		db, err := connectPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres session store: %w", err)
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err := runMigrations(ctx, db, logger); err != nil {
				if closeErr := db.Close(); closeErr != nil {
					err = errors.Join(err, closeErr)
				}
				return nil, err
			}
		}
		return &Store{
			KV:      postgres.NewKVStore(postgres.KVStoreOptions{DB: db, Namespace: cfg.Storage.Namespace, Logger: logger}),
			Backend: backend,
			closers: []io.Closer{db},
		}, nil

	case config.StorageFile, "":
		path := cfg.Storage.FilePath
		if path == "" {
			path = kvstore.DefaultFilePath()
		}
		return &Store{KV: kvstore.NewFile(kvstore.FileOptions{Path: path, Logger: logger}), Backend: config.StorageFile}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", backend)
	}
}
