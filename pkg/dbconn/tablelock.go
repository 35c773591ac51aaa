package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/siddontang/loggers"
)

// TableLock is a server-wide LOCK TABLES ... WRITE held across a single
// transaction, used by the force_sync_request and clear_database_tables
// events to drop or truncate a tenant's tables without racing an
// in-flight row-op.
type TableLock struct {
	lockTxn *sql.Tx
	logger  loggers.Advanced
}

// NewTableLock acquires LOCK TABLES WRITE over quotedTableNames (already
// backtick-quoted and schema-qualified). It uses a short timeout and does
// not retry; the caller decides whether to retry the whole operation.
func NewTableLock(ctx context.Context, db *sql.DB, quotedTableNames []string, config *DBConfig, logger loggers.Advanced) (*TableLock, error) {
	lockStmt := "LOCK TABLES "
	for idx, name := range quotedTableNames {
		if idx > 0 {
			lockStmt += ", "
		}
		lockStmt += name + " WRITE"
	}

	lockTxn, _, err := BeginStandardTrx(ctx, db, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lockTxn.Rollback()
		}
	}()

	logger.Warnf("acquiring table locks, timeout: %ds", config.LockWaitTimeout)
	if _, err = lockTxn.ExecContext(ctx, lockStmt); err != nil {
		logger.Warnf("failed to acquire table lock(s): %v", err)
		return nil, err
	}
	logger.Warn("table lock(s) acquired")
	return &TableLock{lockTxn: lockTxn, logger: logger}, nil
}

// ExecUnderLock executes statements within the locked transaction, in
// order, stopping at the first error.
func (s *TableLock) ExecUnderLock(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if stmt == "" {
			continue
		}
		if _, err := s.lockTxn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q under table lock: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the lock and ends the transaction.
func (s *TableLock) Close() error {
	if _, err := s.lockTxn.Exec("UNLOCK TABLES"); err != nil {
		return err
	}
	if err := s.lockTxn.Rollback(); err != nil {
		return err
	}
	s.logger.Warn("table lock released")
	return nil
}
