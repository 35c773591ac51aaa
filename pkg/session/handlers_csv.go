package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/wire"
)

// uploadDir is the per-session scratch directory for in-flight and
// completed CSV uploads. Uploads never span reconnects, so scoping by
// session ID is enough; no reassembly state needs to survive on disk.
func (c *Controller) uploadDir(sess *Session) string {
	return filepath.Join(c.cfg.UploadsDir, sess.ID)
}

// handleCSVBulkUpload is the single-shot ingress: the whole file arrives
// base64-encoded in one event.
func (c *Controller) handleCSVBulkUpload(ctx context.Context, sess *Session, env wire.Envelope) error {
	var up wire.CSVBulkUpload
	if err := eventUnmarshal(env, &up); err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{Success: false, Error: err.Error()})
	}

	path, size, err := csvbootstrap.WriteUpload(c.uploadDir(sess), up.FileName, up.FileContent)
	if err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: up.TableName, FileName: up.FileName, Success: false, Error: err.Error(),
		})
	}
	if up.FileSizeBytes > 0 && size != up.FileSizeBytes {
		c.logger.Warnf("session %s: csv upload %s declared %d bytes, wrote %d", sess.ID, up.FileName, up.FileSizeBytes, size)
	}

	if err := sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
		TableName: up.TableName, FileName: up.FileName, Success: true,
	}); err != nil {
		return err
	}
	return c.runImport(ctx, sess, up.TableName, path)
}

// handleCSVBulkUploadStart declares a forthcoming chunked upload and
// opens the session-scoped accumulator that collects it.
func (c *Controller) handleCSVBulkUploadStart(ctx context.Context, sess *Session, env wire.Envelope) error {
	var start wire.CSVBulkUploadStart
	if err := eventUnmarshal(env, &start); err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{Success: false, Error: err.Error()})
	}
	acc := csvbootstrap.NewChunkAccumulator(sess.AppID(), start.TableName, start.FileName, start.TotalChunks, start.RowCount, time.Now())
	sess.putUpload(sess.AppID(), start.FileName, acc)
	return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
		TableName: start.TableName, FileName: start.FileName, Success: true,
	})
}

// handleCSVBulkUploadChunk stores one chunk. Once every expected chunk
// has arrived it reassembles, persists, and imports the file; any
// reassembly failure aborts that upload without touching the session.
func (c *Controller) handleCSVBulkUploadChunk(ctx context.Context, sess *Session, env wire.Envelope) error {
	var chunk wire.CSVBulkUploadChunk
	if err := eventUnmarshal(env, &chunk); err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{Success: false, Error: err.Error()})
	}

	acc, ok := sess.upload(sess.AppID(), chunk.FileName)
	if !ok {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: chunk.TableName, FileName: chunk.FileName, Success: false, Error: "no upload in progress for this file",
		})
	}

	content, err := csvbootstrap.DecodeChunk(chunk.ChunkContent)
	if err != nil {
		sess.dropUpload(sess.AppID(), chunk.FileName)
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: chunk.TableName, FileName: chunk.FileName, Success: false, Error: err.Error(),
		})
	}

	complete, err := acc.AddChunk(chunk.ChunkIndex, content)
	if err != nil {
		sess.dropUpload(sess.AppID(), chunk.FileName)
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: chunk.TableName, FileName: chunk.FileName, Success: false, Error: err.Error(),
		})
	}
	if !complete {
		return sess.sender.Send(wire.EventCSVBulkImportProgress, wire.CSVBulkImportProgress{
			TableName: chunk.TableName, FileName: chunk.FileName,
			ReceivedChunks: acc.ReceivedCount(), TotalChunks: chunk.TotalChunks,
		})
	}

	data, err := acc.Assemble()
	sess.dropUpload(sess.AppID(), chunk.FileName)
	if err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: chunk.TableName, FileName: chunk.FileName, Success: false, Error: err.Error(),
		})
	}

	path, err := csvbootstrap.WriteAssembled(c.uploadDir(sess), chunk.FileName, data)
	if err != nil {
		return sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
			TableName: chunk.TableName, FileName: chunk.FileName, Success: false, Error: err.Error(),
		})
	}

	if err := sess.sender.Send(wire.EventCSVBulkUploadResponse, wire.CSVBulkUploadResponse{
		TableName: chunk.TableName, FileName: chunk.FileName, Success: true,
	}); err != nil {
		return err
	}
	return c.runImport(ctx, sess, chunk.TableName, path)
}

func (c *Controller) runImport(ctx context.Context, sess *Session, tableName, path string) error {
	result, err := c.importer.ImportCSV(ctx, sess.Database(), tableName, path)
	if err != nil {
		return sess.sender.Send(wire.EventCSVFileImportComplete, wire.CSVFileImportComplete{
			TableName: tableName, Error: err.Error(),
		})
	}
	return sess.sender.Send(wire.EventCSVFileImportComplete, wire.CSVFileImportComplete{
		TableName:    tableName,
		AffectedRows: result.AffectedRows,
		SkippedRows:  result.SkippedRows,
	})
}
