package dbconn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/testutils"
)

func TestBuildLoadDataStmt(t *testing.T) {
	stmt := buildLoadDataStmt("LOCAL INFILE 'handle1'", BulkLoadOptions{
		TargetTable:      "`store1`.`items`",
		Columns:          []string{"id", "name"},
		IgnoreDuplicates: true,
		SkipHeaderLine:   true,
	})
	assert.Contains(t, stmt, "LOAD DATA LOCAL INFILE 'handle1' IGNORE INTO TABLE `store1`.`items`")
	assert.Contains(t, stmt, "IGNORE 1 LINES")
	assert.Contains(t, stmt, "(`id`, `name`)")
}

func TestBuildLoadDataStmtWithSetClauses(t *testing.T) {
	stmt := buildLoadDataStmt("LOCAL INFILE 'handle1'", BulkLoadOptions{
		TargetTable: "`store1`.`stockitems`",
		UserVars:    []string{"@c1", "@c2"},
		SetClauses:  []string{"`StockId` = TRIM(@c1)", "`Qty` = CAST(@c2 AS SIGNED)"},
	})
	assert.Contains(t, stmt, "(@c1, @c2) SET `StockId` = TRIM(@c1), `Qty` = CAST(@c2 AS SIGNED)")
	assert.NotContains(t, stmt, "(`StockId`")
}

func TestLoadReader(t *testing.T) {
	testutils.RequireDB(t)
	db, err := New(testutils.DSN(), NewDBConfig())
	require.NoError(t, err)
	defer db.Close()

	config := NewDBConfig()
	require.NoError(t, DBExec(t.Context(), db, config, "DROP TABLE IF EXISTS test.bulkload_demo"))
	require.NoError(t, DBExec(t.Context(), db, config, "CREATE TABLE test.bulkload_demo (id INT NOT NULL PRIMARY KEY, name VARCHAR(50))"))

	csv := "1,alice\n2,bob\n"
	n, err := LoadReader(t.Context(), db, BulkLoadOptions{
		TargetTable: "`test`.`bulkload_demo`",
		Columns:     []string{"id", "name"},
	}, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
