package ddl

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
)

// ValidateAddUnique parses a translated ALTER TABLE statement and rejects
// one that adds a UNIQUE index. The bridge applies DDL directly, with no
// online-copy step to absorb a constraint violation against rows already
// replicated from the terminal, so a naive ADD UNIQUE surfaces as an
// opaque duplicate-key error from the target store instead of a DDL
// error the peer can act on. Every statement is parsed, and one that fails
// to parse is rejected; a statement that parses to anything other than
// ALTER TABLE (e.g. DROP TABLE) passes.
func ValidateAddUnique(sql string) error {
	p := parser.New()
	stmtNodes, _, err := p.Parse(sql, "", "")
	if err != nil {
		return fmt.Errorf("ddl: translated statement failed to parse: %w\n%s", err, sql)
	}
	if len(stmtNodes) == 0 {
		return nil
	}
	alterStmt, ok := stmtNodes[0].(*ast.AlterTableStmt)
	if !ok {
		return nil
	}
	for _, spec := range alterStmt.Specs {
		if spec.Tp == ast.AlterTableAddConstraint && spec.Constraint != nil && spec.Constraint.Tp == ast.ConstraintUniq {
			return fmt.Errorf("ddl: statement adds a UNIQUE index; apply it out of band once existing duplicates are resolved")
		}
	}
	return nil
}
