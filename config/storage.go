package config

import (
	"fmt"
	"strings"
)

// StorageBackend selects where the session record is persisted.
type StorageBackend string

const (
	// StorageMemory keeps the session for the life of the process.
	StorageMemory StorageBackend = "memory"
	// StorageFile keeps the session in a JSON file under the user config dir.
	StorageFile StorageBackend = "file"
	// StorageRedis keeps the session in Redis.
	StorageRedis StorageBackend = "redis"
	// StoragePostgres keeps the session in the console_kv table.
	StoragePostgres StorageBackend = "postgres"
	// StorageNone stores nothing; every session starts signed out.
	StorageNone StorageBackend = "none"
)

// ValidStorageBackends returns every accepted backend name.
func ValidStorageBackends() []StorageBackend {
	return []StorageBackend{StorageMemory, StorageFile, StorageRedis, StoragePostgres, StorageNone}
}

// UnmarshalText parses a backend name case-insensitively.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := StorageBackend(strings.ToLower(strings.TrimSpace(string(text))))
	for _, valid := range ValidStorageBackends() {
		if v == valid {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("invalid storage backend: %q (valid options: memory, file, redis, postgres, none)", string(text))
}

// StorageConfig configures the session key-value store.
type StorageConfig struct {
	Backend StorageBackend `env:"STORAGE_BACKEND" envDefault:"file"`

	// FilePath overrides the session file location for the file backend.
	FilePath string `env:"STORAGE_FILE_PATH"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"inventory-console:"`

	// Namespace partitions rows in the Postgres console_kv table.
	Namespace string `env:"STORAGE_NAMESPACE" envDefault:"default"`
}

// Sanitize trims values and fills empty fields with defaults.
func (c *StorageConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = StorageFile
	}
	c.FilePath = strings.TrimSpace(c.FilePath)
	if c.KeyPrefix = strings.TrimSpace(c.KeyPrefix); c.KeyPrefix == "" {
		c.KeyPrefix = "inventory-console:"
	}
	if c.Namespace = strings.TrimSpace(c.Namespace); c.Namespace == "" {
		c.Namespace = "default"
	}
}
