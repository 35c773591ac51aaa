package session

import (
	"context"

	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/wire"
)

func (c *Controller) handleSyncData(ctx context.Context, sess *Session, env wire.Envelope) error {
	var sd wire.SyncData
	if err := eventUnmarshal(env, &sd); err != nil {
		return sess.sender.Send(wire.EventSyncResponse, wire.SyncResponse{
			SyncID: sd.SyncID, Success: false, Error: err.Error(), Timestamp: nowStamp(),
		})
	}
	resp := c.applyRowOp(ctx, sess, sd, rowop.ModeIncremental)
	return sess.sender.Send(wire.EventSyncResponse, resp)
}

func (c *Controller) handleBatchSync(ctx context.Context, sess *Session, env wire.Envelope) error {
	var batch wire.BatchSync
	if err := eventUnmarshal(env, &batch); err != nil {
		return sess.sender.Send(wire.EventBatchSyncResponse, wire.BatchSyncResponse{
			SyncID: batch.SyncID,
			Results: []wire.SyncResponse{{
				Success: false, Error: err.Error(), Timestamp: nowStamp(),
			}},
		})
	}

	results := make([]wire.SyncResponse, 0, len(batch.Operations))
	for _, op := range batch.Operations {
		results = append(results, c.applyRowOp(ctx, sess, op, rowop.ModeIncremental))
	}
	return sess.sender.Send(wire.EventBatchSyncResponse, wire.BatchSyncResponse{
		SyncID:  batch.SyncID,
		Results: results,
	})
}

// applyRowOp decodes the recordData payload, builds a RowOp, and
// dispatches it under mode. It never returns an error: every failure
// mode folds into the returned SyncResponse so the caller can keep
// processing the rest of a batch.
func (c *Controller) applyRowOp(ctx context.Context, sess *Session, sd wire.SyncData, mode rowop.Mode) wire.SyncResponse {
	resp := wire.SyncResponse{SyncID: sd.SyncID, Timestamp: nowStamp()}

	payload, err := wire.Decode(sd.RecordData)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	op := rowop.RowOp{
		AppID:        sess.AppID(),
		StoreID:      sess.StoreID(),
		TableName:    sd.TableName,
		Operation:    rowop.Op(sd.Operation),
		Payload:      payload,
		BusinessType: rowop.BusinessType(sd.BusinessType),
		SyncID:       sd.SyncID,
	}

	if _, err := c.dispatcher.Dispatch(ctx, sess.Database(), op, mode); err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Success = true
	return resp
}

// handleBootstrapBatch backs both full_data_sync_response and
// initial_sync_data_response: each is a batch of the legacy
// row-bootstrap path, applied through the same INSERT upsert as
// incremental sync_data but in bootstrap mode, so a duplicate key is
// skipped rather than upgraded to an UPDATE.
func (c *Controller) handleBootstrapBatch(ctx context.Context, sess *Session, env wire.Envelope, mode rowop.Mode) error {
	progressEvent, completeEvent := wire.EventFullDataSyncProgress, wire.EventFullDataSyncComplete
	if env.Event == wire.EventInitialSyncDataResponse {
		progressEvent, completeEvent = wire.EventInitialSyncProgress, wire.EventInitialSyncComplete
	}

	var batch wire.FullDataSyncResponse
	if err := eventUnmarshal(env, &batch); err != nil {
		return sess.sender.Send(completeEvent, wire.BulkSyncComplete{Error: err.Error()})
	}

	sess.setFullSyncActive(true)

	processed := 0
	for _, raw := range batch.Data {
		payload, err := wire.Decode(raw)
		if err != nil {
			c.logger.Warnf("session %s: %s row decode failed for %s: %v", sess.ID, env.Event, batch.TableName, err)
			continue
		}
		op := rowop.RowOp{
			AppID:     sess.AppID(),
			StoreID:   sess.StoreID(),
			TableName: batch.TableName,
			Operation: rowop.OpInsert,
			Payload:   payload,
			SyncID:    batch.OriginalSyncID,
		}
		if _, err := c.dispatcher.Dispatch(ctx, sess.Database(), op, mode); err != nil {
			c.logger.Warnf("session %s: %s row insert failed for %s: %v", sess.ID, env.Event, batch.TableName, err)
			continue
		}
		processed++
	}

	if !batch.IsLastBatch {
		return sess.sender.Send(progressEvent, wire.BulkSyncProgress{
			TableName:      batch.TableName,
			CurrentBatch:   batch.CurrentBatch,
			TotalBatches:   batch.TotalBatches,
			ProcessedRows:  processed,
			OriginalSyncID: batch.OriginalSyncID,
		})
	}

	sess.setFullSyncActive(false)
	return sess.sender.Send(completeEvent, wire.BulkSyncComplete{
		TableName:      batch.TableName,
		TotalRows:      batch.TotalRows,
		OriginalSyncID: batch.OriginalSyncID,
		Success:        true,
	})
}
