package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	gmschema "github.com/go-mysql-org/go-mysql/schema"
)

// TableInfo is the ordered column list and primary key for one target
// table, resolved case-insensitively.
type TableInfo struct {
	SchemaName string
	TableName  string
	QuotedName string
	Columns    []string
	PKColumns  []string
}

// ResolveTable finds table by case-insensitive match against the tables
// that exist in database schemaName and returns its introspected shape.
// go-mysql-org/go-mysql's schema package is built for binlog replication
// clients that need a live view of a source table's column order; here
// there is no binlog, but the same introspection serves row-op statement
// building and CSV header mapping equally well.
func ResolveTable(ctx context.Context, db *sql.DB, schemaName, table string) (*TableInfo, error) {
	actual, err := resolveTableName(ctx, db, schemaName, table)
	if err != nil {
		return nil, err
	}
	t, err := gmschema.NewTableFromSqlDB(db, schemaName, actual)
	if err != nil {
		return nil, fmt.Errorf("introspecting %s.%s: %w", schemaName, actual, err)
	}
	info := &TableInfo{
		SchemaName: schemaName,
		TableName:  actual,
		QuotedName: fmt.Sprintf("`%s`.`%s`", schemaName, actual),
	}
	for _, col := range t.Columns {
		info.Columns = append(info.Columns, col.Name)
	}
	for _, idx := range t.PKColumns {
		if idx < len(t.Columns) {
			info.PKColumns = append(info.PKColumns, t.Columns[idx].Name)
		}
	}
	return info, nil
}

// resolveTableName looks up the actual table name in schemaName whose
// lowercase form matches table, since MySQL's lower_case_table_names
// setting and the peer's own naming conventions don't always agree.
func resolveTableName(ctx context.Context, db *sql.DB, schemaName, table string) (string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ?", schemaName)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	want := strings.ToLower(table)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		if strings.ToLower(name) == want {
			return name, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("table %s not found in schema %s", table, schemaName)
}

// TableExists reports whether table exists in schemaName, without
// requiring a full introspection.
func TableExists(ctx context.Context, db *sql.DB, schemaName, table string) (bool, error) {
	_, err := resolveTableName(ctx, db, schemaName, table)
	if err != nil {
		return false, nil //nolint:nilerr // "not found" is a valid, non-error outcome
	}
	return true, nil
}

// ListTables returns every base table in schemaName.
func ListTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'", schemaName)
	if err != nil {
		return nil, fmt.Errorf("listing tables in %s: %w", schemaName, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RowCount returns the exact row count for table in schemaName via
// COUNT(*); table must already be a validated, quoted identifier.
func RowCount(ctx context.Context, db *sql.DB, schemaName, quotedTable string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rows in %s.%s: %w", schemaName, quotedTable, err)
	}
	return n, nil
}
