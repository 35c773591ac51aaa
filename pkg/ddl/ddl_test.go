package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateAddColumn(t *testing.T) {
	res, err := Translate(OpAlterTable, "ALTER TABLE [dbo].[StockItems] ADD [Notes] [NVARCHAR](255) NULL")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Contains(t, res.Statement, "ALTER TABLE `StockItems`")
	assert.Contains(t, res.Statement, "ADD COLUMN `Notes` VARCHAR(255)")
	assert.Contains(t, res.Statement, "CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci")
	assert.Contains(t, res.Statement, "NULL")
}

func TestTranslateAddColumnNoLength(t *testing.T) {
	res, err := Translate(OpAlterTable, "ALTER TABLE [dbo].[StockItems] ADD [Flag] [BIT] NOT NULL")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Contains(t, res.Statement, "ADD COLUMN `Flag` BOOLEAN")
	assert.Contains(t, res.Statement, "NOT NULL")
}

func TestTranslateLockEscalationSkipped(t *testing.T) {
	res, err := Translate(OpAlterTable, "ALTER TABLE [dbo].[StockItems] SET (LOCK_ESCALATION = TABLE)")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Statement)
}

func TestTranslateDropColumn(t *testing.T) {
	res, err := Translate(OpAlterTable, "ALTER TABLE [dbo].[StockItems] DROP COLUMN [OldFlag]")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "ALTER TABLE `StockItems` DROP COLUMN `OldFlag`", res.Statement)
}

func TestTranslateAlterColumnBecomesModify(t *testing.T) {
	res, err := Translate(OpAlterTable, "ALTER TABLE [dbo].[StockItems] ALTER COLUMN [Qty] [INT] NOT NULL")
	require.NoError(t, err)
	assert.Contains(t, res.Statement, "MODIFY COLUMN")
	assert.Contains(t, res.Statement, "`StockItems`")
}

func TestTranslateDropTable(t *testing.T) {
	res, err := Translate(OpDropTable, "DROP TABLE [dbo].[StockItems]")
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE `StockItems`", res.Statement)
}

func TestRewriteCommonDataTypes(t *testing.T) {
	assert.Equal(t, "TEXT", rewriteCommon("NVARCHAR(MAX)"))
	assert.Equal(t, "VARCHAR(50)", rewriteCommon("NVARCHAR(50)"))
	assert.Equal(t, "TEXT", rewriteCommon("NTEXT"))
	assert.Equal(t, "BOOLEAN", rewriteCommon("BIT"))
	assert.Equal(t, "DATETIME", rewriteCommon("DATETIME2"))
	assert.Equal(t, "VARCHAR(36)", rewriteCommon("UNIQUEIDENTIFIER"))
	assert.Equal(t, "INT AUTO_INCREMENT", rewriteCommon("INT IDENTITY(1,1)"))
	assert.Equal(t, "BIGINT AUTO_INCREMENT", rewriteCommon("BIGINT IDENTITY(1,1)"))
	assert.Equal(t, "NOW()", rewriteCommon("GETDATE()"))
	assert.Equal(t, "UUID()", rewriteCommon("NEWID()"))
}

func TestRewriteCommonStripsSchemaAndBrackets(t *testing.T) {
	assert.Equal(t, "`StockItems`.`Qty`", rewriteCommon("[dbo].[StockItems].[Qty]"))
}
