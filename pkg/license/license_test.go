package license

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/tenant"
)

func loadDir(t *testing.T, yamlContents string) *tenant.Directory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContents), 0o600))
	dir, err := tenant.LoadDirectory(path)
	require.NoError(t, err)
	return dir
}

// TestValidateExpired exercises an expired licence.
func TestValidateExpired(t *testing.T) {
	dir := loadDir(t, `
tenants:
  - storeId: "239"
    storeName: "Test Store"
    appId: "A"
    licenseExpire: 2020-01-01T00:00:00Z
`)
	svc := New(dir)
	res := svc.Validate(context.Background(), "239", "A")
	assert.True(t, res.Valid)
	assert.True(t, res.Expired)
	require.NotNil(t, res.Store)
	assert.Equal(t, "Test Store", res.Store.StoreName)
}

func TestValidateUnknown(t *testing.T) {
	dir := loadDir(t, "tenants: []\n")
	svc := New(dir)
	res := svc.Validate(context.Background(), "999", "Z")
	assert.False(t, res.Valid)
	assert.True(t, res.Expired)
	assert.Equal(t, "store not found or invalid app", res.Err)
}

func TestValidateDaysRemaining(t *testing.T) {
	dir := loadDir(t, `
tenants:
  - storeId: "1"
    storeName: "Active Store"
    appId: "B"
    licenseExpire: 2030-01-11T00:00:00Z
`)
	svc := New(dir).WithClock(func() time.Time {
		return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	res := svc.Validate(context.Background(), "1", "B")
	assert.True(t, res.Valid)
	assert.False(t, res.Expired)
	assert.Equal(t, 10, res.Store.DaysRemaining)
}

func TestDatabaseFor(t *testing.T) {
	dir := loadDir(t, `
tenants:
  - storeId: "1"
    storeName: "Store"
    appId: "myapp"
    licenseExpire: 2099-01-01T00:00:00Z
`)
	svc := New(dir)
	db, ok := svc.DatabaseFor("1", "myapp")
	assert.True(t, ok)
	assert.Equal(t, "myapp", db)

	_, ok = svc.DatabaseFor("1", "nope")
	assert.False(t, ok)
}
