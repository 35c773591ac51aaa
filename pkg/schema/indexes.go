package schema

import (
	"fmt"

	"github.com/synctap/posbridge/pkg/rowop"
)

// indexBundle is one business-type/table-keyed set of secondary index
// statements applied after CREATE TABLE. Each statement
// runs independently; a failure is logged and skipped rather than
// aborting the others.
type indexBundle struct {
	businessType rowop.BusinessType
	table        string
	statements   func(table string) []string
}

// bundles lists the illustrative, non-exhaustive index sets
// names explicitly. Like the PK policy table, this is data: a new
// business-type/table pairing is a new entry, not a new code path.
var bundles = []indexBundle{
	{
		businessType: rowop.BusinessHospitality,
		table:        "MenuItem",
		statements: func(t string) []string {
			return []string{
				fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (`ItemCode`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_category` ON %s (`Category`)", quoteIdent(t)),
				fmt.Sprintf("ALTER TABLE %s ADD FULLTEXT INDEX `idx_description_ft` (`Description1`,`Description2`) WITH PARSER ngram", quoteIdent(t)),
			}
		},
	},
	{
		businessType: rowop.BusinessHospitality,
		table:        "Sales",
		statements: func(t string) []string {
			return []string{
				fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (`OrderNo`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_orderdate` ON %s (`OrderDate`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_orderdate_orderno` ON %s (`OrderDate`,`OrderNo`)", quoteIdent(t)),
			}
		},
	},
	{
		businessType: rowop.BusinessRetail,
		table:        "StockItems",
		statements: func(t string) []string {
			return []string{
				fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (`StockId`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_category` ON %s (`Category`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_category_stockid` ON %s (`Category`,`StockId`)", quoteIdent(t)),
				fmt.Sprintf("ALTER TABLE %s ADD FULLTEXT INDEX `idx_description_ft` (`Description`,`Description1`,`Description2`,`Description3`) WITH PARSER ngram", quoteIdent(t)),
			}
		},
	},
	{
		businessType: rowop.BusinessRetail,
		table:        "Sales",
		statements: func(t string) []string {
			return []string{
				fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (`InvoiceNo`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_transactiondate` ON %s (`TransactionDate`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_transactiondate_invoiceno` ON %s (`TransactionDate`,`InvoiceNo`)", quoteIdent(t)),
			}
		},
	},
	{
		businessType: rowop.BusinessRetail,
		table:        "SalesDetail",
		statements: func(t string) []string {
			return []string{
				fmt.Sprintf("CREATE INDEX `idx_invoiceno_stockid` ON %s (`InvoiceNo`,`StockId`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_stockid` ON %s (`StockId`)", quoteIdent(t)),
				fmt.Sprintf("CREATE INDEX `idx_invoiceno` ON %s (`InvoiceNo`)", quoteIdent(t)),
			}
		},
	},
}

// IndexBundleFor returns the secondary-index statements for table under
// businessType, or nil when no bundle is registered for that pairing.
func IndexBundleFor(businessType rowop.BusinessType, table string) []string {
	for _, b := range bundles {
		if b.businessType == businessType && b.table == table {
			return b.statements(table)
		}
	}
	return nil
}
