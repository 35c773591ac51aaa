package csvbootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSetClauseProtectedColumnSkipsNumericCoercion(t *testing.T) {
	clause := BuildSetClause("StockId", "@c1")
	assert.NotContains(t, clause, "CAST(@c1 AS SIGNED)")
	assert.NotContains(t, clause, "LOWER(TRIM(@c1))")
	assert.Contains(t, clause, "TRIM(@c1) END")
}

func TestBuildSetClauseNonProtectedColumnCoercesNumeric(t *testing.T) {
	clause := BuildSetClause("Qty", "@c2")
	assert.Contains(t, clause, "CAST(@c2 AS SIGNED)")
	assert.Contains(t, clause, "CAST(@c2 AS DECIMAL(18,4))")
	assert.Contains(t, clause, "LOWER(TRIM(@c2))")
}

func TestSanitiseVarName(t *testing.T) {
	assert.Equal(t, "@c0_Invoice_No", SanitiseVarName("Invoice No", 0))
	assert.Equal(t, "@c1_col1", SanitiseVarName("", 1))
}

func TestIsProtectedColumn(t *testing.T) {
	assert.True(t, IsProtectedColumn("StockId"))
	assert.True(t, IsProtectedColumn("ItemCode"))
	assert.False(t, IsProtectedColumn("Qty"))
}
