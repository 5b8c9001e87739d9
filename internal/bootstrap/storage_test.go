package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/inventory-console/config"
	"github.com/target/inventory-console/internal/adapters/kvstore"
)

func TestOpenStore_LocalBackends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	tests := []struct {
		name    string
		storage config.StorageConfig
		check   func(t *testing.T, s *Store)
	}{
		{
			name:    "memory",
			storage: config.StorageConfig{Backend: config.StorageMemory},
			check: func(t *testing.T, s *Store) {
				_, ok := s.KV.(*kvstore.Memory)
				assert.True(t, ok)
			},
		},
		{
			name:    "none",
			storage: config.StorageConfig{Backend: config.StorageNone},
			check: func(t *testing.T, s *Store) {
				s.KV.Set("access_token", "AT1")
				_, ok := s.KV.Get("access_token")
				assert.False(t, ok)
			},
		},
		{
			name:    "file",
			storage: config.StorageConfig{Backend: config.StorageFile, FilePath: path},
			check: func(t *testing.T, s *Store) {
				s.KV.Set("access_token", "AT1")
				reopened := kvstore.NewFile(kvstore.FileOptions{Path: path})
				v, ok := reopened.Get("access_token")
				require.True(t, ok)
				assert.Equal(t, "AT1", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Storage: tt.storage}
			s, err := OpenStore(context.Background(), StoreDeps{Config: cfg, Logger: discardLogger()})
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, s.Close()) })

			assert.Equal(t, tt.storage.Backend, s.Backend)
			tt.check(t, s)
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := &config.AppConfig{Storage: config.StorageConfig{Backend: "etcd"}}

	_, err := OpenStore(context.Background(), StoreDeps{Config: cfg})

	require.Error(t, err)
}

func TestOpenStore_NilConfig(t *testing.T) {
	_, err := OpenStore(context.Background(), StoreDeps{})
	require.Error(t, err)
}

func TestStore_CloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
