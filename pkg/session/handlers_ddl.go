package session

import (
	"context"

	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/ddl"
	"github.com/synctap/posbridge/pkg/wire"
)

// handleSyncDDLOperation translates the incoming source-dialect command
// and, unless it's a skip, executes the translated statement against the
// session's tenant database. Translation and execution failures are
// reported per-operation; neither closes the session.
func (c *Controller) handleSyncDDLOperation(ctx context.Context, sess *Session, env wire.Envelope) error {
	var op wire.SyncDDLOperation
	if err := eventUnmarshal(env, &op); err != nil {
		return sess.sender.Send(wire.EventDDLSyncError, wire.DDLSyncResult{SyncID: op.SyncID, Error: err.Error()})
	}

	result, err := ddl.Translate(ddl.Operation(op.Operation), op.SQLCommand)
	if err != nil {
		return sess.sender.Send(wire.EventDDLSyncError, wire.DDLSyncResult{SyncID: op.SyncID, Error: err.Error()})
	}
	if result.Skipped {
		return sess.sender.Send(wire.EventDDLSyncSuccess, wire.DDLSyncResult{SyncID: op.SyncID, Skipped: true})
	}
	if err := ddl.ValidateAddUnique(result.Statement); err != nil {
		return sess.sender.Send(wire.EventDDLSyncError, wire.DDLSyncResult{SyncID: op.SyncID, Error: err.Error()})
	}

	db, err := c.pool.Get(ctx, sess.Database())
	if err != nil {
		return sess.sender.Send(wire.EventDDLSyncError, wire.DDLSyncResult{SyncID: op.SyncID, Error: err.Error()})
	}
	if _, err := dbconn.RetryableExec(ctx, db, c.dbConfig, result.Statement); err != nil {
		return sess.sender.Send(wire.EventDDLSyncError, wire.DDLSyncResult{SyncID: op.SyncID, Error: err.Error()})
	}
	return sess.sender.Send(wire.EventDDLSyncSuccess, wire.DDLSyncResult{SyncID: op.SyncID})
}
