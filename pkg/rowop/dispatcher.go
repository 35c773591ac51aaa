package rowop

import (
	"context"
	"fmt"

	"github.com/siddontang/loggers"

	"github.com/synctap/posbridge/pkg/dbconn"
)

// Dispatcher executes built statements against a tenant's pooled
// connection.
type Dispatcher struct {
	pool   *dbconn.Pool
	config *dbconn.DBConfig
	logger loggers.Advanced
}

// NewDispatcher builds a Dispatcher over an already-constructed
// connection pool.
func NewDispatcher(pool *dbconn.Pool, config *dbconn.DBConfig, logger loggers.Advanced) *Dispatcher {
	return &Dispatcher{pool: pool, config: config, logger: logger}
}

// Dispatch builds and executes one RowOp against database. It returns the number of affected rows.
//
// Ordering: callers are responsible for serialising calls
// per (table, primary key) within a session; Dispatch itself places no
// ordering constraint across calls.
func (d *Dispatcher) Dispatch(ctx context.Context, database string, op RowOp, mode Mode) (int64, error) {
	stmt, err := Build(op, mode)
	if err != nil {
		return 0, err
	}

	db, err := d.pool.Get(ctx, database)
	if err != nil {
		return 0, fmt.Errorf("rowop: acquiring pool connection for %s: %w", database, err)
	}

	n, err := dbconn.RetryableExec(ctx, db, d.config, stmt.Query, stmt.Args...)
	if err != nil {
		if op.Operation == OpInsert && mode == ModeIncremental && dbconn.IsDuplicateKeyError(err) {
			// ON DUPLICATE KEY UPDATE should already have absorbed this;
			// a duplicate-key error here means the unique key that
			// collided isn't the one the UPDATE clause covers. Surface
			// it rather than silently dropping the row.
			return 0, fmt.Errorf("rowop: insert/update collided on a non-primary unique key for %s: %w", op.TableName, err)
		}
		return 0, fmt.Errorf("rowop: executing %s on %s: %w", op.Operation, op.TableName, err)
	}
	return n, nil
}
