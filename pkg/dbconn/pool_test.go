package dbconn

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/testutils"
)

func TestPoolGetReusesConnection(t *testing.T) {
	testutils.RequireDB(t)
	template := "root:rootpass@tcp(127.0.0.1:8080)/%s"
	pool := NewPool(template, NewDBConfig(), logrus.New())
	defer pool.Close()

	db1, err := pool.Get(t.Context(), "test")
	require.NoError(t, err)
	db2, err := pool.Get(t.Context(), "test")
	require.NoError(t, err)
	assert.Same(t, db1, db2)
	assert.Equal(t, 1, pool.Len())
}

func TestPoolEvict(t *testing.T) {
	testutils.RequireDB(t)
	template := "root:rootpass@tcp(127.0.0.1:8080)/%s"
	pool := NewPool(template, NewDBConfig(), logrus.New())
	defer pool.Close()

	_, err := pool.Get(t.Context(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Len())
	pool.Evict("test")
	assert.Equal(t, 0, pool.Len())
}
