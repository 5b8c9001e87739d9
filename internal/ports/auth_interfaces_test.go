package ports_test

import (
	"testing"

	"github.com/target/inventory-console/internal/adapters/inventoryapi"
	"github.com/target/inventory-console/internal/adapters/kvstore"
	"github.com/target/inventory-console/internal/adapters/postgres"
	"github.com/target/inventory-console/internal/adapters/redis"
	"github.com/target/inventory-console/internal/mocks"
	fakes "github.com/target/inventory-console/internal/mocks/auth"
	"github.com/target/inventory-console/internal/ports"
	"github.com/target/inventory-console/internal/service"
)

// This test only verifies that adapters and doubles conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.KeyValueStore = (*kvstore.Memory)(nil)
	var _ ports.KeyValueStore = (*kvstore.File)(nil)
	var _ ports.KeyValueStore = kvstore.Unavailable{}
	var _ ports.KeyValueStore = (*redis.KVStore)(nil)
	var _ ports.KeyValueStore = (*postgres.KVStore)(nil)

	var _ ports.AuthAPI = (*inventoryapi.Client)(nil)
	var _ ports.UserAPI = (*inventoryapi.Client)(nil)
	var _ ports.AuthAPI = (*mocks.MockAuthAPI)(nil)
	var _ ports.UserAPI = (*mocks.MockUserAPI)(nil)
	var _ ports.AuthAPI = (*fakes.FakeAuthAPI)(nil)

	var _ ports.SessionClearer = (*service.SessionState)(nil)
	var _ ports.SessionClearer = (*fakes.CountingClearer)(nil)
}
