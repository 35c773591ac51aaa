package dbconn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/testutils"
)

func TestTableLock(t *testing.T) {
	testutils.RequireDB(t)
	db, err := New(testutils.DSN(), NewDBConfig())
	require.NoError(t, err)
	defer db.Close()
	config := NewDBConfig()
	config.LockWaitTimeout = 2

	require.NoError(t, DBExec(context.Background(), db, config, "DROP TABLE IF EXISTS test.testlock"))
	require.NoError(t, DBExec(context.Background(), db, config, "CREATE TABLE test.testlock (id INT NOT NULL PRIMARY KEY, colb int)"))

	lock1, err := NewTableLock(context.Background(), db, []string{"`test`.`testlock`"}, config, logrus.New())
	require.NoError(t, err)

	// Once the first WRITE lock is released, a second WRITE lock on the
	// same table succeeds; this exercises that NewTableLock releases its
	// lock on Close and doesn't wedge a later lock request.
	assert.NoError(t, lock1.Close())

	lock2, err := NewTableLock(context.Background(), db, []string{"`test`.`testlock`"}, config, logrus.New())
	require.NoError(t, err)
	assert.NoError(t, lock2.Close())
}

func TestTableLockFail(t *testing.T) {
	testutils.RequireDB(t)
	db, err := New(testutils.DSN(), NewDBConfig())
	require.NoError(t, err)
	defer db.Close()

	config := NewDBConfig()
	config.MaxRetries = 1
	config.LockWaitTimeout = 1

	require.NoError(t, DBExec(context.Background(), db, config, "DROP TABLE IF EXISTS test.testlockfail"))
	require.NoError(t, DBExec(context.Background(), db, config, "CREATE TABLE test.testlockfail (id INT NOT NULL PRIMARY KEY, colb int)"))

	trx, err := db.Begin()
	require.NoError(t, err)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		_, execErr := trx.Exec("LOCK TABLES test.testlockfail WRITE")
		assert.NoError(t, execErr)
		wg.Done()
		time.Sleep(3 * time.Second)
		assert.NoError(t, trx.Rollback())
	}()
	wg.Wait()

	_, err = NewTableLock(context.Background(), db, []string{"`test`.`testlockfail`"}, config, logrus.New())
	assert.Error(t, err)
}
