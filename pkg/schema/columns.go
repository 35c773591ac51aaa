// Package schema is the Schema Materialiser: it creates
// target tables from a column/index descriptor supplied by the client
// and applies business-type-specific secondary indexes.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/synctap/posbridge/pkg/wire"
)

// renderColumnType maps a source DATA_TYPE (plus length/precision/scale)
// to the target MySQL column type.
func renderColumnType(col wire.ColumnSchema) string {
	t := strings.ToUpper(col.DataType)
	switch t {
	case "INT":
		return "INT"
	case "BIGINT":
		return "BIGINT"
	case "SMALLINT":
		return "SMALLINT"
	case "TINYINT":
		return "TINYINT"
	case "DECIMAL", "NUMERIC":
		precision := int64(18)
		scale := int64(0)
		if col.NumericPrecision != nil {
			precision = *col.NumericPrecision
		}
		if col.NumericScale != nil {
			scale = *col.NumericScale
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)
	case "FLOAT":
		return "FLOAT"
	case "REAL":
		return "DOUBLE"
	case "VARCHAR", "NVARCHAR":
		length := int64(255)
		if col.CharacterMaximumLength != nil && *col.CharacterMaximumLength > 0 {
			length = *col.CharacterMaximumLength
		}
		if col.CharacterMaximumLength != nil && *col.CharacterMaximumLength < 0 {
			// MAX is reported as -1 by SQL Server's information schema.
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", length)
	case "CHAR", "NCHAR":
		length := int64(1)
		if col.CharacterMaximumLength != nil && *col.CharacterMaximumLength > 0 {
			length = *col.CharacterMaximumLength
		}
		return fmt.Sprintf("CHAR(%d)", length)
	case "TEXT", "NTEXT":
		return "TEXT"
	case "DATETIME", "DATETIME2":
		return "DATETIME"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "TIMESTAMP":
		return "TIMESTAMP"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "VARCHAR(36)"
	default:
		return "TEXT"
	}
}

var numericLiteralRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// renderDefault translates a source COLUMN_DEFAULT expression. A nil return means "emit no DEFAULT
// clause".
func renderDefault(col wire.ColumnSchema) *string {
	if col.ColumnDefault == nil {
		return nil
	}
	raw := strings.TrimSpace(*col.ColumnDefault)
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "getdate("):
		v := "CURRENT_TIMESTAMP"
		return &v
	case strings.Contains(lower, "newid("):
		return nil
	case strings.EqualFold(strings.ToUpper(col.DataType), "BIT"):
		v := "'0'"
		if raw == "1" || strings.Contains(lower, "true") {
			v = "'1'"
		}
		return &v
	case numericLiteralRe.MatchString(raw):
		return &raw
	default:
		unquoted := strings.Trim(raw, "'\"()")
		if strings.ContainsAny(unquoted, "(){}") {
			// A complex expression/object; the column is kept but gets no DEFAULT clause.
			return nil
		}
		v := "'" + strings.ReplaceAll(unquoted, "'", "''") + "'"
		return &v
	}
}

// renderColumn builds one column definition clause.
//
// Nullability rule: emit NOT NULL only when the source
// column is non-nullable AND has a default, is identity, or is a
// primary key; otherwise NULL DEFAULT NULL, so later CSV seeding can
// leave cells empty without violating the original constraint.
func renderColumn(col wire.ColumnSchema, isPK bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", quoteIdent(col.ColumnName), renderColumnType(col))

	def := renderDefault(col)
	sourceNotNull := strings.EqualFold(col.IsNullable, "NO")
	emitNotNull := sourceNotNull && (def != nil || col.IsIdentity || isPK)

	if emitNotNull {
		b.WriteString(" NOT NULL")
		if def != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *def)
		}
	} else {
		b.WriteString(" NULL DEFAULT NULL")
	}
	if col.IsIdentity {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// BuildCreateTable renders the full CREATE TABLE statement for tableName
// from ts. Columns with COLUMN_KEY=PRI are collected into
// a composite PRIMARY KEY(...) clause; an explicit ts.PrimaryKeys list
// (when non-empty) takes precedence.
func BuildCreateTable(tableName string, ts wire.TableSchema) (string, error) {
	if len(ts.Columns) == 0 {
		return "", fmt.Errorf("schema: %s: no columns supplied", tableName)
	}

	pkCols := ts.PrimaryKeys
	if len(pkCols) == 0 {
		for _, col := range ts.Columns {
			if strings.EqualFold(col.ColumnKey, "PRI") {
				pkCols = append(pkCols, col.ColumnName)
			}
		}
	}
	pkSet := make(map[string]bool, len(pkCols))
	for _, c := range pkCols {
		pkSet[c] = true
	}

	defs := make([]string, 0, len(ts.Columns)+1)
	for _, col := range ts.Columns {
		defs = append(defs, renderColumn(col, pkSet[col.ColumnName]))
	}
	if len(pkCols) > 0 {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = quoteIdent(c)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY(%s)", strings.Join(quoted, ",")))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci",
		quoteIdent(tableName), strings.Join(defs, ",\n  "))
	return b.String(), nil
}

// BuildIndexStatements renders one CREATE INDEX (CREATE UNIQUE INDEX for a
// unique index) statement per supplied index.
func BuildIndexStatements(tableName string, indexes []wire.IndexSchema) []string {
	stmts := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			dir := "ASC"
			if c.Descending {
				dir = "DESC"
			}
			cols[i] = fmt.Sprintf("%s %s", quoteIdent(c.ColumnName), dir)
		}
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		name := idx.Name
		if name == "" {
			name = "idx_" + strings.Join(colNames(idx.Columns), "_")
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s %s ON %s (%s)",
			kind, quoteIdent(name), quoteIdent(tableName), strings.Join(cols, ",")))
	}
	return stmts
}

func colNames(cols []wire.IndexColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ColumnName
	}
	return out
}
