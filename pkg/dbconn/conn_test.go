package dbconn

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/synctap/posbridge/pkg/testutils"
)

func assertDSNConfig(t *testing.T, dsnStr string, user, password, addr, dbName string) {
	t.Helper()
	cfg, err := mysql.ParseDSN(dsnStr)
	assert.NoError(t, err)
	assert.Equal(t, user, cfg.User)
	assert.Equal(t, password, cfg.Passwd)
	assert.Equal(t, addr, cfg.Addr)
	assert.Equal(t, dbName, cfg.DBName)
	assert.True(t, cfg.AllowNativePasswords)
	assert.True(t, cfg.RejectReadOnly)
	assert.Equal(t, "utf8mb4_0900_ai_ci", cfg.Collation)
	assert.Equal(t, `""`, cfg.Params["sql_mode"])
	assert.Equal(t, `"+00:00"`, cfg.Params["time_zone"])
}

func TestNewDSN(t *testing.T) {
	dsn := "root:password@tcp(127.0.0.1:3306)/test"
	resp, err := newDSN(dsn, NewDBConfig())
	assert.NoError(t, err)
	assertDSNConfig(t, resp, "root", "password", "127.0.0.1:3306", "test")

	cfg, err := mysql.ParseDSN(resp)
	assert.NoError(t, err)
	assert.NotEmpty(t, cfg.TLSConfig, "PREFERRED mode configures TLS")

	// DSN with explicit tls parameter should be preserved as-is.
	dsn = "root:password@tcp(127.0.0.1:3306)/test?tls=skip-verify"
	resp, err = newDSN(dsn, NewDBConfig())
	assert.NoError(t, err)
	cfg, err = mysql.ParseDSN(resp)
	assert.NoError(t, err)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)

	// Invalid DSN, can't parse.
	_, err = newDSN("not-a-dsn!!", NewDBConfig())
	assert.Error(t, err)
}

func TestNewDSNDisabledTLS(t *testing.T) {
	config := NewDBConfig()
	config.TLSMode = "DISABLED"
	resp, err := newDSN("root:password@tcp(127.0.0.1:3306)/test", config)
	assert.NoError(t, err)
	cfg, err := mysql.ParseDSN(resp)
	assert.NoError(t, err)
	assert.Empty(t, cfg.TLSConfig)
	assert.False(t, cfg.AllowCleartextPasswords)
}

func TestNewConn(t *testing.T) {
	_, err := New("not-a-dsn!!", NewDBConfig())
	assert.Error(t, err)

	testutils.RequireDB(t)
	db, err := New(testutils.DSN(), NewDBConfig())
	assert.NoError(t, err)
	assert.NotNil(t, db)
	defer db.Close()
	var resp int
	err = db.QueryRowContext(t.Context(), "SELECT 1").Scan(&resp)
	assert.NoError(t, err)
	assert.Equal(t, 1, resp)
}
