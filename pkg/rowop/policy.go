// Package rowop is the Row-Op Dispatcher: given a parsed
// RowOp it builds and executes the correct parameterised statement using
// the table/business-type primary-key policy.
package rowop

// BusinessType is the vertical governing PK policy and the secondary
// index bundle.
type BusinessType string

const (
	BusinessRetail      BusinessType = "retail"
	BusinessHospitality BusinessType = "hospitality"
)

// fallbackPK is the primary key policy used for any table not listed in
// the static policy table below.
var fallbackPK = []string{"id"}

// pkPolicy is the static, central primary-key policy table. It is
// embedded as data, not control flow: adding a
// table only needs a new entry here.
var pkPolicy = map[string]map[BusinessType][]string{
	"Sales": {
		BusinessRetail:      {"InvoiceNo"},
		BusinessHospitality: {"OrderNo"},
	},
	"SalesDetail": {
		BusinessRetail:      {"InvoiceNo", "StockId"},
		BusinessHospitality: {"OrderNo", "ItemCode"},
	},
	"StockItems": {
		BusinessRetail: {"StockId"},
	},
	"MenuItem": {
		BusinessHospitality: {"ItemCode"},
	},
	"SubMenuLinkDetail": {
		BusinessHospitality: {"ItemCode"},
	},
	"PaymentReceived": {
		BusinessRetail:      {"InvoiceNo", "Id"},
		BusinessHospitality: {"OrderNo", "Id"},
	},
	"Payment": {
		BusinessRetail:      {"Payment"},
		BusinessHospitality: {"Payment"},
	},
}

// PrimaryKeyColumns returns the ordered set of columns forming the
// WHERE predicate for table under businessType.
func PrimaryKeyColumns(table string, businessType BusinessType) []string {
	if byType, ok := pkPolicy[table]; ok {
		if cols, ok := byType[businessType]; ok {
			return cols
		}
	}
	return fallbackPK
}
