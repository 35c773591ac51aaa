package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synctap/posbridge/pkg/rowop"
)

func TestIndexBundleFor(t *testing.T) {
	stmts := IndexBundleFor(rowop.BusinessRetail, "StockItems")
	assert.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "PRIMARY KEY (`StockId`)")

	assert.Nil(t, IndexBundleFor(rowop.BusinessRetail, "MenuItem"))
}
