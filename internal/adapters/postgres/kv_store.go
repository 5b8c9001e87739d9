// Package postgres provides a Postgres-backed session key-value store.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/target/inventory-console/internal/errors"
	"github.com/target/inventory-console/internal/ports"
)

var _ ports.KeyValueStore = (*KVStore)(nil)

const (
	defaultNamespace = "default"
	defaultOpTimeout = 2 * time.Second
)

// KVStore keeps session entries in the console_kv table, partitioned by namespace.
// Database errors are logged and degrade to absent/no-op. A missing table reads as absent.
type KVStore struct {
	db        *sql.DB
	namespace string
	opTimeout time.Duration
	logger    *slog.Logger
}

// KVStoreOptions groups KVStore dependencies.
type KVStoreOptions struct {
	DB        *sql.DB
	Namespace string
	OpTimeout time.Duration
	Logger    *slog.Logger
}

// NewKVStore creates a Postgres-backed key-value store. Run migrate.Run first to create the table.
func NewKVStore(opts KVStoreOptions) *KVStore {
	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		db:        opts.DB,
		namespace: ns,
		opTimeout: timeout,
		logger:    logger.With("component", "kvstore_postgres", "namespace", ns),
	}
}

func (s *KVStore) Get(key string) (string, bool) {
	if s.db == nil || key == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	var value string
	err := withPgxConn(ctx, s.db, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT value FROM console_kv WHERE namespace = $1 AND key = $2`,
			s.namespace, key,
		).Scan(&value)
	})
	if err != nil {
		s.logFailure(ctx, "get", key, err)
		return "", false
	}
	return value, true
}

func (s *KVStore) Set(key, value string) {
	if s.db == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO console_kv (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.namespace, key, value)
	if err != nil {
		s.logFailure(ctx, "set", key, err)
	}
}

func (s *KVStore) Remove(key string) {
	if s.db == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM console_kv WHERE namespace = $1 AND key = $2`, s.namespace, key); err != nil {
		s.logFailure(ctx, "remove", key, err)
	}
}

// Clear removes every entry in this store's namespace.
func (s *KVStore) Clear() {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM console_kv WHERE namespace = $1`, s.namespace); err != nil {
		s.logFailure(ctx, "clear", "", err)
	}
}

func (s *KVStore) logFailure(ctx context.Context, op, key string, err error) {
	mapped := apperrors.MapDBError(err)
	switch {
	case apperrors.IsNotFound(mapped):
		// absent row or missing table
		return
	case apperrors.IsUnavailable(mapped), apperrors.IsTimeout(mapped):
		s.logger.WarnContext(ctx, "postgres store unavailable", "op", op, "key", key, "error", err)
	default:
		s.logger.ErrorContext(ctx, "postgres store failed", "op", op, "key", key, "error", err)
	}
}
