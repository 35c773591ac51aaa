package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
)

var bulkLoadHandle int64

// BulkLoadOptions describes one LOAD DATA invocation.
type BulkLoadOptions struct {
	// TargetTable is the backtick-quoted, schema-qualified table name.
	TargetTable string
	// Columns is the ordered column list the CSV's data rows map onto,
	// already reconciled against the table's actual column order.
	Columns []string
	// IgnoreDuplicates emits LOAD DATA ... IGNORE so rows that collide on
	// a unique key are skipped rather than aborting the whole load.
	IgnoreDuplicates bool
	// FieldsTerminatedBy and LinesTerminatedBy default to "," and "\n".
	FieldsTerminatedBy string
	LinesTerminatedBy  string
	// SkipHeaderLine, when true, emits IGNORE 1 LINES.
	SkipHeaderLine bool
	// UserVars, when non-empty, binds each CSV input column positionally
	// to a user variable (e.g. "@c1") instead of loading straight into
	// Columns; SetClauses then supplies the coercion expression assigning
	// each table column from those variables.
	// Columns is ignored when UserVars is set.
	UserVars []string
	// SetClauses pairs with UserVars: one "`col` = <expr>" clause per
	// target column.
	SetClauses []string
}

// LoadReader streams r into TargetTable via LOAD DATA LOCAL INFILE,
// registered under a unique in-process handle so the driver never
// touches the local filesystem directly. It returns the number of rows
// the server reports as affected, which for an IGNORE load is the number
// of rows actually inserted (duplicates are silently excluded from the
// count).
func LoadReader(ctx context.Context, db *sql.DB, opts BulkLoadOptions, r io.Reader) (int64, error) {
	handle := fmt.Sprintf("posbridge_bulkload_%d", atomic.AddInt64(&bulkLoadHandle, 1))
	mysql.RegisterReaderHandler(handle, func() io.Reader { return r })
	defer mysql.DeregisterReaderHandler(handle)

	stmt := buildLoadDataStmt(fmt.Sprintf("LOCAL INFILE 'Reader::%s'", handle), opts)
	res, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("LOAD DATA LOCAL INFILE into %s: %w", opts.TargetTable, err)
	}
	return res.RowsAffected()
}

// LoadFile streams the file at path into TargetTable via LOAD DATA
// INFILE (the non-LOCAL variant), for deployments where the target MySQL
// server runs on the same host or shares a mounted volume with the
// bridge and local_infile is disabled for security reasons.
func LoadFile(ctx context.Context, db *sql.DB, opts BulkLoadOptions, path string) (int64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("bulk load source file: %w", err)
	}
	stmt := buildLoadDataStmt(fmt.Sprintf("INFILE '%s'", escapeSingleQuotes(path)), opts)
	res, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("LOAD DATA INFILE %s into %s: %w", path, opts.TargetTable, err)
	}
	return res.RowsAffected()
}

func buildLoadDataStmt(source string, opts BulkLoadOptions) string {
	fieldsTerm := opts.FieldsTerminatedBy
	if fieldsTerm == "" {
		fieldsTerm = ","
	}
	linesTerm := opts.LinesTerminatedBy
	if linesTerm == "" {
		linesTerm = "\n"
	}
	var b strings.Builder
	b.WriteString("LOAD DATA ")
	b.WriteString(source)
	if opts.IgnoreDuplicates {
		b.WriteString(" IGNORE")
	}
	b.WriteString(" INTO TABLE ")
	b.WriteString(opts.TargetTable)
	fmt.Fprintf(&b, " FIELDS TERMINATED BY '%s' OPTIONALLY ENCLOSED BY '\"' ESCAPED BY '\\\\'", escapeSingleQuotes(fieldsTerm))
	fmt.Fprintf(&b, " LINES TERMINATED BY '%s'", escapeSingleQuotes(linesTerm))
	if opts.SkipHeaderLine {
		b.WriteString(" IGNORE 1 LINES")
	}
	switch {
	case len(opts.UserVars) > 0:
		b.WriteString(" (")
		b.WriteString(strings.Join(opts.UserVars, ", "))
		b.WriteString(")")
		if len(opts.SetClauses) > 0 {
			b.WriteString(" SET ")
			b.WriteString(strings.Join(opts.SetClauses, ", "))
		}
	case len(opts.Columns) > 0:
		b.WriteString(" (")
		for i, col := range opts.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("`")
			b.WriteString(col)
			b.WriteString("`")
		}
		b.WriteString(")")
	}
	return b.String()
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// LoadReaderConn and LoadFileConn are the *sql.Conn-pinned counterparts
// of LoadReader/LoadFile. The CSV bootstrap importer needs the LOAD DATA
// statement and the subsequent SHOW WARNINGS scan
// to run against the same backend connection, since warnings are
// per-session state; a plain *sql.DB call could hand the follow-up query
// to a different pooled connection.
func LoadReaderConn(ctx context.Context, conn *sql.Conn, opts BulkLoadOptions, r io.Reader) (int64, error) {
	handle := fmt.Sprintf("posbridge_bulkload_%d", atomic.AddInt64(&bulkLoadHandle, 1))
	mysql.RegisterReaderHandler(handle, func() io.Reader { return r })
	defer mysql.DeregisterReaderHandler(handle)

	stmt := buildLoadDataStmt(fmt.Sprintf("LOCAL INFILE 'Reader::%s'", handle), opts)
	res, err := conn.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("LOAD DATA LOCAL INFILE into %s: %w", opts.TargetTable, err)
	}
	return res.RowsAffected()
}

func LoadFileConn(ctx context.Context, conn *sql.Conn, opts BulkLoadOptions, path string) (int64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("bulk load source file: %w", err)
	}
	stmt := buildLoadDataStmt(fmt.Sprintf("INFILE '%s'", escapeSingleQuotes(path)), opts)
	res, err := conn.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("LOAD DATA INFILE %s into %s: %w", path, opts.TargetTable, err)
	}
	return res.RowsAffected()
}

// ShowWarnings runs SHOW WARNINGS on conn and returns each row's MySQL
// error/warning code, used by the importer to count duplicate-key
// diagnostics as skipped rows.
func ShowWarnings(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW WARNINGS") //nolint: execinquery
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	var level, code, message string
	for rows.Next() {
		if err := rows.Scan(&level, &code, &message); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// LocalInfileEnabled reports whether the connected MySQL server
// advertises local_infile=ON.
func LocalInfileEnabled(ctx context.Context, db *sql.DB) (bool, error) {
	var name, value string
	err := db.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'local_infile'").Scan(&name, &value)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(value, "ON"), nil
}

// SecureFileDir returns the server's secure_file_priv directory, or ""
// if the server has it unset/disabled (empty string or NULL mean
// different things in MySQL; both are treated as "no secure directory
// configured" here since neither lets an arbitrary upload path through).
func SecureFileDir(ctx context.Context, db *sql.DB) (string, error) {
	var name, value sql.NullString
	err := db.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'secure_file_priv'").Scan(&name, &value)
	if err != nil {
		return "", err
	}
	if !value.Valid {
		return "", nil
	}
	return value.String, nil
}
