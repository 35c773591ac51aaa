package rowop

import (
	"fmt"
	"strings"

	"github.com/synctap/posbridge/pkg/wire"
)

// Op is the row operation kind.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Mode distinguishes the incremental path's upsert semantics from the
// bootstrap path's skip-on-duplicate semantics.
type Mode int

const (
	// ModeIncremental upgrades a duplicate key to an UPDATE
	// (ON DUPLICATE KEY UPDATE) INSERT.
	ModeIncremental Mode = iota
	// ModeBootstrap skips a duplicate key rather than overwriting it,
	// preserving idempotency of repeated full-sync bootstraps.
	ModeBootstrap
)

// RowOp is one transient row-level change.
type RowOp struct {
	AppID        string
	StoreID      string
	TableName    string
	Operation    Op
	Payload      wire.Payload
	BusinessType BusinessType
	SyncID       string
}

// ValidationError is a non-retryable rejection: a required primary-key
// column was absent from the payload, or the operation tag is
// unsupported. The session controller reports these per-event and keeps
// the session open.
type ValidationError struct {
	Table string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rowop: %s: %s", e.Table, e.Msg)
}

// Statement is a built, ready-to-execute parameterised statement.
type Statement struct {
	Query string
	Args  []any
}

// Build constructs the parameterised statement for op under mode. Column names are never taken from user input as
// identifiers without quoting; values are always passed as driver
// parameters, never interpolated.
func Build(op RowOp, mode Mode) (Statement, error) {
	switch op.Operation {
	case OpInsert:
		return buildInsert(op, mode)
	case OpUpdate:
		return buildUpdate(op)
	case OpDelete:
		return buildDelete(op)
	default:
		return Statement{}, &ValidationError{Table: op.TableName, Msg: fmt.Sprintf("unsupported operation %q", op.Operation)}
	}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// buildInsert builds the INSERT statement: every key in the
// payload except the old_ pre-image keys, in payload order, becomes a
// column; ON DUPLICATE KEY UPDATE
// makes replay idempotent for the incremental path, while the bootstrap
// path uses INSERT IGNORE so a re-run of the same seed file doesn't
// clobber rows touched since.
func buildInsert(op RowOp, mode Mode) (Statement, error) {
	fields := op.Payload.NewFields()
	if len(fields) == 0 {
		return Statement{}, &ValidationError{Table: op.TableName, Msg: "insert payload has no columns"}
	}

	cols := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.Key)
		placeholders[i] = "?"
		args[i] = f.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s(%s) VALUES(%s)",
		quoteIdent(op.TableName), strings.Join(cols, ","), strings.Join(placeholders, ","))

	switch mode {
	case ModeBootstrap:
		b.Reset()
		fmt.Fprintf(&b, "INSERT IGNORE INTO %s(%s) VALUES(%s)",
			quoteIdent(op.TableName), strings.Join(cols, ","), strings.Join(placeholders, ","))
	default:
		updates := make([]string, len(fields))
		for i, f := range fields {
			updates[i] = fmt.Sprintf("%s=VALUES(%s)", quoteIdent(f.Key), quoteIdent(f.Key))
		}
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		b.WriteString(strings.Join(updates, ","))
	}

	return Statement{Query: b.String(), Args: args}, nil
}

// buildUpdate builds the UPDATE statement: SET list is every
// non-old_ key; WHERE values come from old_<PKcol> when present, else
// <PKcol> itself.
func buildUpdate(op RowOp) (Statement, error) {
	pkCols := PrimaryKeyColumns(op.TableName, op.BusinessType)
	fields := op.Payload.NewFields()
	if len(fields) == 0 {
		return Statement{}, &ValidationError{Table: op.TableName, Msg: "update payload has no columns"}
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+len(pkCols))
	for _, f := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s=?", quoteIdent(f.Key)))
		args = append(args, f.Value)
	}

	whereClauses := make([]string, 0, len(pkCols))
	for _, col := range pkCols {
		v, ok := op.Payload.Resolve(col)
		if !ok {
			return Statement{}, &ValidationError{Table: op.TableName, Msg: fmt.Sprintf("missing required primary key column %q", col)}
		}
		whereClauses = append(whereClauses, fmt.Sprintf("%s=?", quoteIdent(col)))
		args = append(args, v)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(op.TableName), strings.Join(setClauses, ","), strings.Join(whereClauses, " AND "))
	return Statement{Query: query, Args: args}, nil
}

// buildDelete builds the DELETE statement: WHERE values are
// taken directly from the payload, no old_ lookup.
func buildDelete(op RowOp) (Statement, error) {
	pkCols := PrimaryKeyColumns(op.TableName, op.BusinessType)
	whereClauses := make([]string, 0, len(pkCols))
	args := make([]any, 0, len(pkCols))
	for _, col := range pkCols {
		v, ok := op.Payload.Get(col)
		if !ok {
			return Statement{}, &ValidationError{Table: op.TableName, Msg: fmt.Sprintf("missing required primary key column %q", col)}
		}
		whereClauses = append(whereClauses, fmt.Sprintf("%s=?", quoteIdent(col)))
		args = append(args, v)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(op.TableName), strings.Join(whereClauses, " AND "))
	return Statement{Query: query, Args: args}, nil
}
