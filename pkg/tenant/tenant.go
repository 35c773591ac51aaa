// Package tenant loads the tenant directory: the static mapping of
// (storeId, appId) pairs to licence metadata, plus the environment-driven
// server configuration.
package tenant

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is one row of the tenant table.
// It is owned by an external administrative system: read but never written
// here.
type Record struct {
	StoreID       string    `yaml:"storeId"`
	StoreName     string    `yaml:"storeName"`
	AppID         string    `yaml:"appId"`
	LicenseExpire time.Time `yaml:"licenseExpire"`
}

// Directory is the in-memory tenant table, loaded once at startup from a
// YAML mapping file. It never writes back.
type Directory struct {
	records map[string]Record // key: storeId + "/" + appId
}

func key(storeID, appID string) string {
	return storeID + "/" + appID
}

// LoadDirectory reads the tenant mapping file from path.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tenant directory %s: %w", path, err)
	}
	var file struct {
		Tenants []Record `yaml:"tenants"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing tenant directory %s: %w", path, err)
	}
	d := &Directory{records: make(map[string]Record, len(file.Tenants))}
	for _, r := range file.Tenants {
		d.records[key(r.StoreID, r.AppID)] = r
	}
	return d, nil
}

// Lookup returns the tenant record for (storeId, appId), or false if the
// pair is not present.
func (d *Directory) Lookup(storeID, appID string) (Record, bool) {
	r, ok := d.records[key(storeID, appID)]
	return r, ok
}

// Len returns the number of tenants currently loaded.
func (d *Directory) Len() int {
	return len(d.records)
}

// ServerConfig is the environment-driven runtime configuration described
// tunables.
type ServerConfig struct {
	Host string `help:"Listen host" env:"HOST" default:"0.0.0.0"`
	Port int    `help:"Listen port" env:"PORT" default:"3031"`

	PingTimeout    time.Duration `kong:"-"`
	PingInterval   time.Duration `kong:"-"`
	UpgradeTimeout time.Duration `kong:"-"`
	MaxBufferSize  int64         `kong:"-"`

	FullSyncBatchSize    int           `kong:"-"`
	FullSyncTimeout      time.Duration `kong:"-"`
	FullSyncRetryAttempt int           `kong:"-"`

	UploadsDir string `help:"Directory for in-flight and completed CSV uploads" env:"UPLOADS_DIR" default:"uploads"`

	TargetDSNTemplate string `help:"DSN template for the target store, %s is replaced with the database name" env:"TARGET_DSN_TEMPLATE"`
	TenantDirFile     string `help:"Path to the tenant directory YAML file" env:"TENANT_DIRECTORY_FILE"`

	LogLevel string `help:"Log level" env:"LOG_LEVEL" default:"info"`
}

// ServerConfigFromEnv fills in the tunables documented as
// environment variables but which kong's struct tags above can't default
// to: they need int/duration parsing with their own fallback values,
// not kong's literal defaults, since several are milliseconds in the env
// but time.Duration here.
func ServerConfigFromEnv(cfg *ServerConfig) {
	cfg.PingTimeout = envMillis("SOCKETIO_PING_TIMEOUT", 60000)
	cfg.PingInterval = envMillis("SOCKETIO_PING_INTERVAL", 25000)
	cfg.UpgradeTimeout = envMillis("SOCKETIO_UPGRADE_TIMEOUT", 10000)
	cfg.MaxBufferSize = envInt64("SOCKETIO_MAX_BUFFER_SIZE", 10_000_000)

	cfg.FullSyncBatchSize = envInt("FULL_SYNC_BATCH_SIZE", 1000)
	cfg.FullSyncTimeout = envMillis("FULL_SYNC_TIMEOUT", 300000)
	cfg.FullSyncRetryAttempt = envInt("FULL_SYNC_RETRY_ATTEMPTS", 3)
}

func envMillis(name string, def int64) time.Duration {
	return time.Duration(envInt64(name, def)) * time.Millisecond
}

func envInt64(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envInt(name string, def int) int {
	return int(envInt64(name, int64(def)))
}
