package rowop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/wire"
)

// TestBuildInsertIncremental exercises the incremental upsert scenario: INSERT
// idempotence for retail SalesDetail.
func TestBuildInsertIncremental(t *testing.T) {
	op := RowOp{
		TableName:    "SalesDetail",
		Operation:    OpInsert,
		BusinessType: BusinessRetail,
		Payload: wire.Payload{
			{Key: "InvoiceNo", Value: "7"},
			{Key: "StockId", Value: "S1"},
			{Key: "Qty", Value: "2"},
		},
	}
	stmt, err := Build(op, ModeIncremental)
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "INSERT INTO `SalesDetail`")
	assert.Contains(t, stmt.Query, "ON DUPLICATE KEY UPDATE")
	assert.Equal(t, []any{"7", "S1", "2"}, stmt.Args)
}

func TestBuildInsertBootstrapSkipsDuplicates(t *testing.T) {
	op := RowOp{
		TableName:    "StockItems",
		Operation:    OpInsert,
		BusinessType: BusinessRetail,
		Payload:      wire.Payload{{Key: "StockId", Value: "007"}},
	}
	stmt, err := Build(op, ModeBootstrap)
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "INSERT IGNORE INTO `StockItems`")
	assert.NotContains(t, stmt.Query, "ON DUPLICATE KEY")
}

// TestBuildUpdatePreImage exercises E3: UPDATE with a pre-image WHERE
// predicate for hospitality MenuItem.
func TestBuildUpdatePreImage(t *testing.T) {
	op := RowOp{
		TableName:    "MenuItem",
		Operation:    OpUpdate,
		BusinessType: BusinessHospitality,
		Payload: wire.Payload{
			{Key: "ItemCode", Value: "M1"},
			{Key: "Description1", Value: "b"},
			{Key: "old_ItemCode", Value: "M1"},
		},
	}
	stmt, err := Build(op, ModeIncremental)
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "UPDATE `MenuItem` SET")
	assert.Contains(t, stmt.Query, "WHERE `ItemCode`=?")
	assert.Equal(t, []any{"M1", "b", "M1"}, stmt.Args)
}

func TestBuildUpdateMissingPKIsValidationError(t *testing.T) {
	op := RowOp{
		TableName:    "MenuItem",
		Operation:    OpUpdate,
		BusinessType: BusinessHospitality,
		Payload:      wire.Payload{{Key: "Description1", Value: "b"}},
	}
	_, err := Build(op, ModeIncremental)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuildDeleteUsesPayloadDirectly(t *testing.T) {
	op := RowOp{
		TableName:    "Sales",
		Operation:    OpDelete,
		BusinessType: BusinessRetail,
		Payload:      wire.Payload{{Key: "InvoiceNo", Value: "7"}},
	}
	stmt, err := Build(op, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `Sales` WHERE `InvoiceNo`=?", stmt.Query)
	assert.Equal(t, []any{"7"}, stmt.Args)
}

func TestPrimaryKeyColumnsFallback(t *testing.T) {
	assert.Equal(t, []string{"id"}, PrimaryKeyColumns("SomeOtherTable", BusinessRetail))
	assert.Equal(t, []string{"InvoiceNo", "Id"}, PrimaryKeyColumns("PaymentReceived", BusinessRetail))
	assert.Equal(t, []string{"OrderNo", "ItemCode"}, PrimaryKeyColumns("SalesDetail", BusinessHospitality))
}
