package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/config"
	"github.com/sagarc03/relaygate/database"
	"github.com/sagarc03/relaygate/registry"
)

const servicesFixture = `[
  {
    "id": "users",
    "gateway_prefix": "/users",
    "target_service": {"host_var": "RELAYGATE_TEST_USERS_HOST", "base_path": "/api"},
    "routes": [
      {"route": "", "methods": ["get", "post"]},
      {"route": "/:id", "methods": ["get", "trace"], "auth_required": true}
    ]
  },
  {
    "id": "billing",
    "gateway_prefix": "/billing",
    "target_service": {"host_var": "RELAYGATE_TEST_BILLING_HOST"},
    "routes": [{"route": "", "methods": ["get"]}]
  }
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	servicesPath := filepath.Join(dir, "services.json")
	require.NoError(t, os.WriteFile(servicesPath, []byte(servicesFixture), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RELAYGATE_TEST_USERS_HOST=http://users.internal:8080\n"), 0o600))

	return &config.Config{
		Registry: config.RegistryConfig{
			Source:  config.SourceFile,
			Path:    servicesPath,
			EnvFile: envPath,
		},
		Database: database.Config{
			Type:        "sqlite",
			DSN:         filepath.Join(dir, "relaygate.db"),
			Tables:      relaygate.Tables{Services: "gateway_services", Routes: "gateway_routes"},
			AutoMigrate: true,
		},
	}
}

func TestBuildTable_FromFile(t *testing.T) {
	cfg := testConfig(t)

	table, err := buildTable(context.Background(), cfg)
	require.NoError(t, err)

	// users: GET+POST on "", GET on "/:id"; trace and billing are skipped
	assert.Equal(t, 3, table.Len())

	b, ok := table.Lookup(relaygate.MethodGet, "/users/:id")
	require.True(t, ok)
	assert.True(t, b.AuthRequired)
	assert.Equal(t, "http://users.internal:8080/api", b.Target.String())

	reasons := map[string]relaygate.SkipReason{}
	for _, s := range table.Skipped() {
		reasons[s.Service+" "+s.Method] = s.Reason
	}
	assert.Equal(t, relaygate.SkipUnresolvedTarget, reasons["billing "])
	assert.Equal(t, relaygate.SkipUnsupportedMethod, reasons["users trace"])
}

func TestBuildTable_FromDatabase(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	descs, err := registry.LoadFile(cfg.Registry.Path)
	require.NoError(t, err)

	db, err := database.Open(ctx, cfg.Database)
	require.NoError(t, err)
	require.NoError(t, registry.Import(ctx, db.GetRepo(), descs))
	require.NoError(t, db.Close())

	cfg.Registry.Source = config.SourceDatabase

	table, err := buildTable(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestLoadDescriptors_MissingFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Path = filepath.Join(t.TempDir(), "missing.json")

	_, _, err := loadDescriptors(context.Background(), cfg)
	assert.ErrorContains(t, err, "load registry")
}
