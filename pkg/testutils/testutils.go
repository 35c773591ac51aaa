// Package testutils provides the small set of helpers every package's
// test suite uses to reach a real MySQL instance: a DSN sourced from the
// environment, and a fire-and-forget statement runner. Tests that need a
// live database are integration tests and are expected to be run against
// a disposable MySQL instance; they skip themselves when one isn't
// reachable.
package testutils

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

// DSN returns the MySQL DSN integration tests connect with, overridable
// via POSBRIDGE_TEST_DSN so CI and local dev can point at different
// instances.
func DSN() string {
	if dsn := os.Getenv("POSBRIDGE_TEST_DSN"); dsn != "" {
		return dsn
	}
	return "root:rootpass@tcp(127.0.0.1:8080)/test"
}

// RunSQL executes stmt against DSN(), failing the test on error. It's
// meant for test fixture setup (DROP TABLE IF EXISTS, CREATE TABLE, ...),
// not for assertions.
func RunSQL(t *testing.T, stmt string, args ...any) {
	t.Helper()
	db, err := sql.Open("mysql", DSN())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(context.Background(), stmt, args...)
	require.NoError(t, err)
}

// RequireDB skips the test unless a real MySQL server is reachable at
// DSN(). Call this first in any test that touches the network.
func RequireDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("mysql", DSN())
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		t.Skipf("skipping integration test, no reachable MySQL at %s: %v", DSN(), err)
	}
	return db
}
