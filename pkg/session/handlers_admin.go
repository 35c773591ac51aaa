package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/wire"
)

func quoteTableIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// handleForceSyncRequest drops every table in the session's tenant
// database so the peer can re-run a full bootstrap from scratch. The
// pool entry is evicted afterward so a reconnect never reuses a handle
// whose session state (e.g. a prepared statement cache) assumes tables
// that no longer exist. A metadata lock scoped to the tenant database
// keeps this from racing a concurrent clear_database_tables or CSV
// bootstrap against the same database, including one running on a
// different bridge process.
func (c *Controller) handleForceSyncRequest(ctx context.Context, sess *Session, env wire.Envelope) error {
	var req wire.ForceSyncRequest
	if err := eventUnmarshal(env, &req); err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}
	if req.Action != "" && req.Action != "drop_all_tables" {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{
			Success: false, Error: fmt.Sprintf("unsupported force-sync action %q", req.Action),
		})
	}

	database := sess.Database()
	mdl, err := dbconn.NewMetadataLock(ctx, c.pool.DSN(database), dbconn.MetadataLockName(database), c.logger)
	if err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}
	defer mdl.Close()

	db, err := c.pool.Get(ctx, database)
	if err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}

	tables, err := dbconn.ListTables(ctx, db, database)
	if err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}
	if len(tables) == 0 {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: true})
	}

	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = quoteTableIdent(t)
	}

	lock, err := dbconn.NewTableLock(ctx, db, quoted, c.dbConfig, c.logger)
	if err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}
	defer lock.Close()

	drops := make([]string, len(quoted))
	for i, q := range quoted {
		drops[i] = "DROP TABLE " + q
	}
	if err := lock.ExecUnderLock(ctx, drops...); err != nil {
		return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: false, Error: err.Error()})
	}

	c.pool.Evict(database)
	return sess.sender.Send(wire.EventForceSyncResponse, wire.ForceSyncResponse{Success: true})
}

// handleClearDatabaseTables truncates the named tables under a single
// locked transaction, toggling foreign-key checks off for the duration
// so truncation order doesn't matter. The re-enable is deferred
// separately from the truncation batch so it still runs on a failed
// TRUNCATE: FOREIGN_KEY_CHECKS is a session variable, not part of the
// transaction, so ROLLBACK in TableLock.Close never resets it, and a
// connection left with checks disabled would poison whatever later
// operation the pool hands it to next.
func (c *Controller) handleClearDatabaseTables(ctx context.Context, sess *Session, env wire.Envelope) error {
	var req wire.ClearDatabaseTables
	if err := eventUnmarshal(env, &req); err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}
	if len(req.TableNames) == 0 {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: true})
	}

	database := sess.Database()
	mdl, err := dbconn.NewMetadataLock(ctx, c.pool.DSN(database), dbconn.MetadataLockName(database), c.logger)
	if err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}
	defer mdl.Close()

	db, err := c.pool.Get(ctx, database)
	if err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}

	quoted := make([]string, len(req.TableNames))
	for i, t := range req.TableNames {
		quoted[i] = quoteTableIdent(t)
	}

	lock, err := dbconn.NewTableLock(ctx, db, quoted, c.dbConfig, c.logger)
	if err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}
	defer lock.Close()

	if err := lock.ExecUnderLock(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}
	defer func() {
		if ferr := lock.ExecUnderLock(ctx, "SET FOREIGN_KEY_CHECKS=1"); ferr != nil {
			c.logger.Warnf("clear_database_tables: store %s app %s: failed to re-enable foreign key checks: %v", sess.StoreID(), sess.AppID(), ferr)
		}
	}()

	truncates := make([]string, len(quoted))
	for i, q := range quoted {
		truncates[i] = "TRUNCATE TABLE " + q
	}
	if err := lock.ExecUnderLock(ctx, truncates...); err != nil {
		return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: false, Error: err.Error()})
	}
	return sess.sender.Send(wire.EventClearDatabaseResponse, wire.ClearDatabaseResponse{Success: true, Dropped: req.TableNames})
}
