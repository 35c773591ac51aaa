package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddUniqueRejectsUniqueIndex(t *testing.T) {
	err := ValidateAddUnique("ALTER TABLE `StockItems` ADD UNIQUE `idx_sku` (`Sku`)")
	assert.Error(t, err)
}

func TestValidateAddUniqueAllowsPlainColumn(t *testing.T) {
	err := ValidateAddUnique("ALTER TABLE `StockItems` ADD COLUMN `Notes` VARCHAR(255) NULL")
	assert.NoError(t, err)
}

func TestValidateAddUniqueAllowsNonAlter(t *testing.T) {
	err := ValidateAddUnique("DROP TABLE `StockItems`")
	assert.NoError(t, err)
}
