package schema

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
)

// validateGeneratedDDL parses sql with the MySQL-dialect TiDB parser
// before the caller ever sends it to the target store, the same
// parse-then-inspect idiom used elsewhere to catch unsafe ALTERs before
// execution. Unlike pkg/ddl, which handles the source SQL-Server
// dialect by pattern matching, this only ever sees MySQL DDL this
// package itself generated.
func validateGeneratedDDL(sql string) error {
	p := parser.New()
	if _, _, err := p.Parse(sql, "", ""); err != nil {
		return fmt.Errorf("schema: generated DDL failed to parse: %w\n%s", err, sql)
	}
	return nil
}
