package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/siddontang/loggers"

	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/wire"
)

// Materialiser is the Schema Materialiser: it creates
// target tables from a column/index descriptor supplied by the client
// and applies business-type-specific secondary indexes.
type Materialiser struct {
	pool   *dbconn.Pool
	config *dbconn.DBConfig
	logger loggers.Advanced
}

// New builds a Materialiser over an already-constructed connection pool.
func New(pool *dbconn.Pool, config *dbconn.DBConfig, logger loggers.Advanced) *Materialiser {
	return &Materialiser{pool: pool, config: config, logger: logger}
}

// CreateTable builds and executes createTable(database, tableName,
// schema, databaseType?) entry point. businessType is nil when the
// event's databaseType field was absent, in which case the secondary
// index bundle is skipped entirely.
func (m *Materialiser) CreateTable(ctx context.Context, database, tableName string, ts wire.TableSchema, businessType *rowop.BusinessType) error {
	createStmt, err := BuildCreateTable(tableName, ts)
	if err != nil {
		return err
	}
	if err := validateGeneratedDDL(createStmt); err != nil {
		return err
	}

	db, err := m.pool.Get(ctx, database)
	if err != nil {
		return fmt.Errorf("schema: acquiring pool connection for %s: %w", database, err)
	}

	if _, err := dbconn.RetryableExec(ctx, db, m.config, createStmt); err != nil {
		return fmt.Errorf("schema: creating table %s: %w", tableName, err)
	}

	for _, stmt := range BuildIndexStatements(tableName, ts.Indexes) {
		m.execIndependent(ctx, db, tableName, stmt)
	}

	if businessType != nil {
		for _, stmt := range IndexBundleFor(*businessType, tableName) {
			m.execIndependent(ctx, db, tableName, stmt)
		}
	}
	return nil
}

// execIndependent runs one secondary-index statement in isolation,
// logging and swallowing its error rather than aborting the rest of the
// bundle.
func (m *Materialiser) execIndependent(ctx context.Context, db *sql.DB, tableName, stmt string) {
	if _, err := dbconn.RetryableExec(ctx, db, m.config, stmt); err != nil {
		m.logger.Warnf("schema: index statement for %s failed, skipping: %v (%s)", tableName, err, stmt)
	}
}
