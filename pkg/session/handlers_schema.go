package session

import (
	"context"

	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/wire"
)

// handleVerifyAndSyncTable answers whether the target already has
// tableName and, if not, asks the peer to supply a schema for it via
// request_table_schema.
func (c *Controller) handleVerifyAndSyncTable(ctx context.Context, sess *Session, env wire.Envelope) error {
	var req wire.VerifyAndSyncTable
	if err := eventUnmarshal(env, &req); err != nil {
		return sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{})
	}

	db, err := c.pool.Get(ctx, sess.Database())
	if err != nil {
		return sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{TableName: req.TableName})
	}

	exists, err := dbconn.TableExists(ctx, db, sess.Database(), req.TableName)
	if err != nil {
		return sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{TableName: req.TableName})
	}
	if !exists {
		if err := sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{
			TableName: req.TableName, Exists: false, NeedsSync: true, UseCSVSync: true,
		}); err != nil {
			return err
		}
		return sess.sender.Send(wire.EventRequestTableSchema, wire.RequestTableSchema{TableName: req.TableName})
	}

	info, err := dbconn.ResolveTable(ctx, db, sess.Database(), req.TableName)
	if err != nil {
		return sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{TableName: req.TableName, Exists: true})
	}
	count, err := dbconn.RowCount(ctx, db, sess.Database(), info.QuotedName)
	if err != nil {
		count = 0
	}
	needsSync := count == 0
	return sess.sender.Send(wire.EventVerifyAndSyncResponse, wire.VerifyAndSyncResponse{
		TableName: req.TableName, Exists: true, NeedsSync: needsSync, RowCount: count, UseCSVSync: needsSync,
	})
}

// handleCreateTableFromSchema is the unprompted schema-materialiser
// entry point: the peer supplies a full column/index descriptor without
// the server having asked for it.
func (c *Controller) handleCreateTableFromSchema(ctx context.Context, sess *Session, env wire.Envelope) error {
	var req wire.CreateTableFromSchema
	if err := eventUnmarshal(env, &req); err != nil {
		return sess.sender.Send(wire.EventTableCreated, wire.TableCreated{Error: err.Error()})
	}
	return c.materializeTable(ctx, sess, req.TableName, req.Schema, req.DatabaseType)
}

// handleTableSchemaResponse answers a prior request_table_schema with
// the same materialisation path as create_table_from_schema.
func (c *Controller) handleTableSchemaResponse(ctx context.Context, sess *Session, env wire.Envelope) error {
	var resp wire.TableSchemaResponse
	if err := eventUnmarshal(env, &resp); err != nil {
		return sess.sender.Send(wire.EventTableCreated, wire.TableCreated{Error: err.Error()})
	}
	return c.materializeTable(ctx, sess, resp.TableName, resp.Schema, "")
}

func (c *Controller) materializeTable(ctx context.Context, sess *Session, tableName string, ts wire.TableSchema, databaseType string) error {
	var businessType *rowop.BusinessType
	if databaseType != "" {
		bt := rowop.BusinessType(databaseType)
		businessType = &bt
	}
	if err := c.materialiser.CreateTable(ctx, sess.Database(), tableName, ts, businessType); err != nil {
		return sess.sender.Send(wire.EventTableCreated, wire.TableCreated{TableName: tableName, Success: false, Error: err.Error()})
	}
	return sess.sender.Send(wire.EventTableCreated, wire.TableCreated{TableName: tableName, Success: true})
}
