package tenant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTenantFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDirectory(t *testing.T) {
	path := writeTenantFile(t, `
tenants:
  - storeId: "239"
    storeName: "Test Store"
    appId: "A"
    licenseExpire: 2020-01-01T00:00:00Z
  - storeId: "240"
    storeName: "Other Store"
    appId: "B"
    licenseExpire: 2099-01-01T00:00:00Z
`)
	dir, err := LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	r, ok := dir.Lookup("239", "A")
	require.True(t, ok)
	assert.Equal(t, "Test Store", r.StoreName)
	assert.True(t, r.LicenseExpire.Before(time.Now()))

	_, ok = dir.Lookup("239", "nonexistent")
	assert.False(t, ok)
}

func TestLoadDirectoryMissingFile(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv("SOCKETIO_PING_TIMEOUT", "1000")
	t.Setenv("FULL_SYNC_BATCH_SIZE", "50")
	cfg := &ServerConfig{}
	ServerConfigFromEnv(cfg)
	assert.Equal(t, time.Second, cfg.PingTimeout)
	assert.Equal(t, 50, cfg.FullSyncBatchSize)
	assert.Equal(t, time.Duration(25000)*time.Millisecond, cfg.PingInterval)
}
