// Package dbconn is the Target-Store Access Layer: pooled connections to
// the target RDBMS keyed by physical database name, a retryable
// parameterised execute, a bulk-load entry point, and schema
// introspection.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errCannotConnect   = 2003
	errConnLost        = 2013
	errReadOnly        = 1290
	errQueryKilled     = 1836
)

// DBConfig controls session-level settings applied to every connection
// and transaction this package opens.
type DBConfig struct {
	LockWaitTimeout       int
	InnodbLockWaitTimeout int
	MaxRetries            int
	MaxOpenConnections    int
	TLSMode               string // DISABLED, PREFERRED, REQUIRED, VERIFY_CA, VERIFY_IDENTITY
	TLSCertificatePath    string
}

// NewDBConfig returns conservative production defaults: a short lock wait
// so one wedged tenant can't stall the others sharing the pool.
func NewDBConfig() *DBConfig {
	return &DBConfig{
		LockWaitTimeout:       30,
		InnodbLockWaitTimeout: 3,
		MaxRetries:            5,
		MaxOpenConnections:    10,
		TLSMode:               "PREFERRED",
	}
}

func standardizeConn(ctx context.Context, conn *sql.Conn, config *DBConfig) error {
	stmts := []string{
		"SET time_zone='+00:00'",
		"SET sql_mode=''",
		"SET NAMES 'utf8mb4'",
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := conn.ExecContext(ctx, "SET innodb_lock_wait_timeout=?", config.InnodbLockWaitTimeout); err != nil {
		return err
	}
	_, err := conn.ExecContext(ctx, "SET lock_wait_timeout=?", config.LockWaitTimeout)
	return err
}

func standardizeTrx(ctx context.Context, trx *sql.Tx, config *DBConfig) error {
	stmts := []string{
		"SET time_zone='+00:00'",
		"SET sql_mode=''",
		"SET NAMES 'utf8mb4'",
	}
	for _, stmt := range stmts {
		if _, err := trx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := trx.ExecContext(ctx, "SET innodb_lock_wait_timeout=?", config.InnodbLockWaitTimeout); err != nil {
		return err
	}
	_, err := trx.ExecContext(ctx, "SET lock_wait_timeout=?", config.LockWaitTimeout)
	return err
}

// canRetryError decides if a MySQL error is a transient condition worth
// rolling back and retrying the whole transaction for, rather than a
// permanent failure.
func canRetryError(err error) bool {
	var errNumber uint16
	if val, ok := err.(*mysql.MySQLError); ok {
		errNumber = val.Number
	}
	switch errNumber {
	case errLockWaitTimeout, errDeadlock, errCannotConnect,
		errConnLost, errReadOnly, errQueryKilled:
		return true
	default:
		return false
	}
}

// IsDuplicateKeyError reports whether err is MySQL error 1062. The row-op
// dispatcher uses this to report a statement that still collides on a
// unique key; re-sent rows on the primary key are already absorbed by the
// INSERT's ON DUPLICATE KEY UPDATE clause.
func IsDuplicateKeyError(err error) bool {
	val, ok := err.(*mysql.MySQLError)
	return ok && val.Number == 1062
}

// RetryableTransaction retries all statements in a transaction if a
// statement errors with a retryable condition. It retries up to
// config.MaxRetries times. ignoreDupKeyWarnings controls whether a 1062
// warning raised by an INSERT IGNORE / ON DUPLICATE KEY statement aborts
// the transaction or is treated as expected background noise, the same
// distinction the bulk CSV loader needs for its IGNORE-based upserts.
func RetryableTransaction(ctx context.Context, db *sql.DB, ignoreDupKeyWarnings bool, config *DBConfig, stmts ...string) (int64, error) {
	var err error
	var trx *sql.Tx
	var rowsAffected int64
RETRYLOOP:
	for i := 0; i < config.MaxRetries; i++ {
		if trx, err = db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}); err != nil {
			backoff(i)
			continue RETRYLOOP
		}
		if err = standardizeTrx(ctx, trx, config); err != nil {
			_ = trx.Rollback()
			backoff(i)
			continue RETRYLOOP
		}
		for _, stmt := range stmts {
			if stmt == "" {
				continue
			}
			var res sql.Result
			if res, err = trx.ExecContext(ctx, stmt); err != nil {
				if canRetryError(err) {
					_ = trx.Rollback()
					backoff(i)
					continue RETRYLOOP
				}
				_ = trx.Rollback()
				return rowsAffected, err
			}
			if err := scanWarnings(ctx, trx, stmt, ignoreDupKeyWarnings); err != nil {
				_ = trx.Rollback()
				return rowsAffected, err
			}
			if count, cerr := res.RowsAffected(); cerr == nil {
				rowsAffected += count
			}
		}
		if err != nil {
			_ = trx.Rollback()
			backoff(i)
			continue RETRYLOOP
		}
		if err = trx.Commit(); err != nil {
			_ = trx.Rollback()
			backoff(i)
			continue RETRYLOOP
		}
		return rowsAffected, nil
	}
	return rowsAffected, err
}

// RetryableExec executes one driver-parameterised statement inside a
// retryable transaction, the single-statement counterpart to
// RetryableTransaction used by the row-op dispatcher.
func RetryableExec(ctx context.Context, db *sql.DB, config *DBConfig, query string, args ...any) (int64, error) {
	var err error
	var trx *sql.Tx
RETRYLOOP:
	for i := 0; i < config.MaxRetries; i++ {
		if trx, err = db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}); err != nil {
			backoff(i)
			continue RETRYLOOP
		}
		if err = standardizeTrx(ctx, trx, config); err != nil {
			_ = trx.Rollback()
			backoff(i)
			continue RETRYLOOP
		}
		var res sql.Result
		res, err = trx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = trx.Rollback()
			if canRetryError(err) {
				backoff(i)
				continue RETRYLOOP
			}
			return 0, err
		}
		if err = trx.Commit(); err != nil {
			_ = trx.Rollback()
			backoff(i)
			continue RETRYLOOP
		}
		n, _ := res.RowsAffected()
		return n, nil
	}
	return 0, err
}

// scanWarnings inspects SHOW WARNINGS after a statement. A successful
// statement can still carry warnings — bulk loads using INSERT IGNORE or
// LOAD DATA ... IGNORE are the common case.
func scanWarnings(ctx context.Context, trx *sql.Tx, stmt string, ignoreDupKeyWarnings bool) error {
	rows, err := trx.QueryContext(ctx, "SHOW WARNINGS") //nolint: execinquery
	if err != nil {
		return err
	}
	defer rows.Close()
	var level, code, message string
	for rows.Next() {
		if err := rows.Scan(&level, &code, &message); err != nil {
			return err
		}
		switch code {
		case "1062":
			if ignoreDupKeyWarnings {
				continue
			}
			return fmt.Errorf("unsafe warning running statement: %s, query: %s", message, stmt)
		case "3170": // ER_CAPACITY_EXCEEDED: query still executes, just not optimally
			continue
		default:
			return fmt.Errorf("unsafe warning running statement: %s, query: %s", message, stmt)
		}
	}
	return rows.Err()
}

func backoff(i int) {
	randFactor := i * rand.Intn(10) * int(time.Millisecond)
	time.Sleep(time.Duration(randFactor))
}

// DBExec is like db.Exec but applies the lock-wait tunables first. No
// retry, no result.
func DBExec(ctx context.Context, db *sql.DB, config *DBConfig, query string, args ...any) error {
	trx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	if err := standardizeTrx(ctx, trx, config); err != nil {
		_ = trx.Rollback()
		return err
	}
	if _, err := trx.ExecContext(ctx, query, args...); err != nil {
		_ = trx.Rollback()
		return err
	}
	return trx.Commit()
}

// BeginStandardTrx is like db.BeginTx but applies the lock-wait settings
// up front and returns the connection id, useful for diagnosing or
// killing a stuck lock holder.
func BeginStandardTrx(ctx context.Context, db *sql.DB, config *DBConfig) (*sql.Tx, int, error) {
	trx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	if config == nil {
		config = NewDBConfig()
	}
	if err := standardizeTrx(ctx, trx, config); err != nil {
		return nil, 0, err
	}
	var connectionID int
	if err := trx.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&connectionID); err != nil {
		return nil, 0, err
	}
	return trx, connectionID, nil
}
