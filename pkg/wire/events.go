package wire

import "encoding/json"

// Event name constants, verbatim as they appear on the wire.
const (
	EventIdentify               = "identify"
	EventSyncData                = "sync_data"
	EventBatchSync                = "batch_sync"
	EventSyncDDLOperation         = "sync_ddl_operation"
	EventVerifyAndSyncTable       = "verify_and_sync_table"
	EventCreateTableFromSchema    = "create_table_from_schema"
	EventTableSchemaResponse      = "table_schema_response"
	EventFullDataSyncResponse     = "full_data_sync_response"
	EventInitialSyncDataResponse  = "initial_sync_data_response"
	EventForceSyncRequest         = "force_sync_request"
	EventClearDatabaseTables      = "clear_database_tables"
	EventCSVBulkUpload            = "csv_bulk_upload"
	EventCSVBulkUploadStart       = "csv_bulk_upload_start"
	EventCSVBulkUploadChunk       = "csv_bulk_upload_chunk"
	EventPing                     = "ping"

	EventIdentified             = "identified"
	EventLicenseExpired         = "license_expired"
	EventLicenseError           = "license_error"
	EventIdentificationError    = "identification_error"
	EventSyncResponse           = "sync_response"
	EventBatchSyncResponse      = "batch_sync_response"
	EventDDLSyncSuccess         = "ddl_sync_success"
	EventDDLSyncError           = "ddl_sync_error"
	EventVerifyAndSyncResponse  = "verify_and_sync_response"
	EventRequestTableSchema     = "request_table_schema"
	EventTableCreated           = "table_created"
	EventRequestFullDataSync    = "request_full_data_sync"
	EventFullDataSyncProgress   = "full_data_sync_progress"
	EventFullDataSyncComplete   = "full_data_sync_complete"
	EventInitialSyncProgress    = "initial_sync_progress"
	EventInitialSyncComplete    = "initial_sync_complete"
	EventCSVBulkSyncRequest     = "csv_bulk_sync_request"
	EventCSVBulkUploadResponse  = "csv_bulk_upload_response"
	EventCSVBulkImportProgress  = "csv_bulk_import_progress"
	EventCSVFileImportComplete  = "csv_file_import_complete"
	EventClearDatabaseResponse  = "clear_database_response"
	EventForceSyncResponse      = "force_sync_response"
	EventPong                   = "pong"
)

// Identify is the identification contract sent by a peer on connect.
type Identify struct {
	StoreID     string `json:"storeId"`
	AppID       string `json:"appId"`
	ServiceType string `json:"serviceType"`
}

// SyncData is one incremental row-level delta.
type SyncData struct {
	AppID        string          `json:"appId,omitempty"`
	StoreID      string          `json:"storeId,omitempty"`
	TableName    string          `json:"tableName"`
	Operation    string          `json:"operation"`
	RecordData   json.RawMessage `json:"recordData"`
	Timestamp    string          `json:"timestamp,omitempty"`
	SyncID       string          `json:"syncId"`
	BusinessType string          `json:"businessType"`
}

// BatchSync carries multiple SyncData entries applied in arrival order.
type BatchSync struct {
	Operations []SyncData `json:"operations"`
	SyncID     string     `json:"syncId,omitempty"`
}

// SyncDDLOperation is a translated-on-arrival schema change.
type SyncDDLOperation struct {
	StoreID    string `json:"storeId"`
	AppID      string `json:"appId"`
	TableName  string `json:"tableName"`
	Operation  string `json:"operation"`
	SQLCommand string `json:"sqlCommand"`
	SyncID     string `json:"syncId"`
}

// VerifyAndSyncTable asks whether the target already has tableName and
// whether a re-sync is warranted.
type VerifyAndSyncTable struct {
	TableName string `json:"tableName"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// ColumnSchema mirrors one information_schema.COLUMNS row as the peer
// reports it.
type ColumnSchema struct {
	ColumnName             string `json:"COLUMN_NAME"`
	DataType               string `json:"DATA_TYPE"`
	CharacterMaximumLength *int64 `json:"CHARACTER_MAXIMUM_LENGTH,omitempty"`
	NumericPrecision       *int64 `json:"NUMERIC_PRECISION,omitempty"`
	NumericScale           *int64 `json:"NUMERIC_SCALE,omitempty"`
	IsNullable             string `json:"IS_NULLABLE"`
	ColumnDefault          *string `json:"COLUMN_DEFAULT,omitempty"`
	IsIdentity             bool   `json:"IS_IDENTITY,omitempty"`
	ColumnKey              string `json:"COLUMN_KEY,omitempty"`
}

// IndexColumn is one column participating in a supplied index.
type IndexColumn struct {
	ColumnName string `json:"columnName"`
	Descending bool   `json:"descending,omitempty"`
}

// IndexSchema is one supplied secondary index.
type IndexSchema struct {
	Name    string        `json:"name"`
	Unique  bool          `json:"unique,omitempty"`
	Columns []IndexColumn `json:"columns"`
}

// TableSchema is the column/index descriptor the peer supplies for
// table creation.
type TableSchema struct {
	Columns     []ColumnSchema `json:"columns"`
	PrimaryKeys []string       `json:"primaryKeys,omitempty"`
	Indexes     []IndexSchema  `json:"indexes,omitempty"`
}

// CreateTableFromSchema is the schema-materialiser entry point.
type CreateTableFromSchema struct {
	TableName     string      `json:"tableName"`
	Schema        TableSchema `json:"schema"`
	IsInitialSync bool        `json:"isInitialSync,omitempty"`
	DatabaseType  string      `json:"databaseType,omitempty"`
}

// TableSchemaResponse answers a prior request_table_schema.
type TableSchemaResponse struct {
	TableName      string      `json:"tableName"`
	Schema         TableSchema `json:"schema"`
	OriginalSyncID string      `json:"originalSyncId"`
}

// FullDataSyncResponse is one batch of the legacy row-bootstrap path.
type FullDataSyncResponse struct {
	TableName      string            `json:"tableName"`
	Data           []json.RawMessage `json:"data"`
	CurrentBatch   int               `json:"currentBatch"`
	TotalBatches   int               `json:"totalBatches"`
	TotalRows      int               `json:"totalRows"`
	IsLastBatch    bool              `json:"isLastBatch"`
	OriginalSyncID string            `json:"originalSyncId"`
}

// InitialSyncDataResponse has the same shape as FullDataSyncResponse; the
// two response events differ only in framing, not in payload semantics.
type InitialSyncDataResponse = FullDataSyncResponse

// BulkSyncProgress reports progress on one legacy row-bootstrap batch.
type BulkSyncProgress struct {
	TableName      string `json:"tableName"`
	CurrentBatch   int    `json:"currentBatch"`
	TotalBatches   int    `json:"totalBatches"`
	ProcessedRows  int    `json:"processedRows"`
	OriginalSyncID string `json:"originalSyncId"`
}

// BulkSyncComplete reports the final outcome of a legacy row-bootstrap
// sequence.
type BulkSyncComplete struct {
	TableName      string `json:"tableName"`
	TotalRows      int    `json:"totalRows"`
	OriginalSyncID string `json:"originalSyncId"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// ForceSyncRequest asks the server to drop every table for the session's
// tenant, so the peer can re-create them with a full bootstrap.
type ForceSyncRequest struct {
	Action string `json:"action"`
}

// ClearDatabaseTables truncates the named tables transactionally.
type ClearDatabaseTables struct {
	TableNames []string `json:"tableNames"`
}

// CSVBulkUpload is the single-shot upload event.
type CSVBulkUpload struct {
	TableName     string `json:"tableName"`
	FileName      string `json:"fileName"`
	FileContent   string `json:"fileContent"` // base64
	FileSizeBytes int64  `json:"fileSizeBytes"`
	RowCount      int64  `json:"rowCount"`
}

// CSVBulkUploadStart declares a forthcoming chunked upload.
type CSVBulkUploadStart struct {
	TableName     string `json:"tableName"`
	FileName      string `json:"fileName"`
	TotalChunks   int    `json:"totalChunks"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	RowCount      int64  `json:"rowCount"`
}

// CSVBulkUploadChunk is one chunk of a chunked upload.
type CSVBulkUploadChunk struct {
	TableName     string `json:"tableName"`
	FileName      string `json:"fileName"`
	ChunkIndex    int    `json:"chunkIndex"`
	TotalChunks   int    `json:"totalChunks"`
	ChunkContent  string `json:"chunkContent"` // base64
	IsLastChunk   bool   `json:"isLastChunk"`
}

// --- server -> peer ---

// Identified acknowledges a successful identification.
type Identified struct {
	StoreID string `json:"storeId"`
	AppID   string `json:"appId"`
}

// LicenseError is emitted for both license_expired and license_error;
// Code distinguishes them (410 vs 400).
type LicenseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SyncResponse answers one sync_data by SyncID.
type SyncResponse struct {
	SyncID    string `json:"syncId"`
	Success   bool   `json:"success"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// BatchSyncResponse answers one batch_sync: one SyncResponse per
// operation, in arrival order.
type BatchSyncResponse struct {
	SyncID  string          `json:"syncId,omitempty"`
	Results []SyncResponse  `json:"results"`
}

// DDLSyncResult answers one sync_ddl_operation.
type DDLSyncResult struct {
	SyncID  string `json:"syncId"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// VerifyAndSyncResponse answers verify_and_sync_table.
type VerifyAndSyncResponse struct {
	TableName  string `json:"tableName"`
	Exists     bool   `json:"exists"`
	NeedsSync  bool   `json:"needsSync"`
	RowCount   int64  `json:"rowCount"`
	UseCSVSync bool   `json:"useCSVSync"`
}

// RequestTableSchema asks the peer to send table_schema_response.
type RequestTableSchema struct {
	TableName      string `json:"tableName"`
	OriginalSyncID string `json:"originalSyncId"`
}

// TableCreated answers create_table_from_schema.
type TableCreated struct {
	TableName string `json:"tableName"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// RequestFullDataSync asks the peer to start the legacy row-bootstrap
// path for TableName.
type RequestFullDataSync struct {
	TableName      string `json:"tableName"`
	OriginalSyncID string `json:"originalSyncId"`
	BatchSize      int    `json:"batchSize"`
}

// CSVBulkUploadResponse answers a single-shot or completed chunked
// upload.
type CSVBulkUploadResponse struct {
	TableName string `json:"tableName"`
	FileName  string `json:"fileName"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// CSVBulkImportProgress reports reassembly progress for a chunked
// upload still in flight.
type CSVBulkImportProgress struct {
	TableName      string `json:"tableName"`
	FileName       string `json:"fileName"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
}

// CSVFileImportComplete reports the outcome of importCSV.
type CSVFileImportComplete struct {
	TableName     string `json:"tableName"`
	AffectedRows  int64  `json:"affectedRows"`
	SkippedRows   int64  `json:"skippedRows"`
	Error         string `json:"error,omitempty"`
}

// ClearDatabaseResponse answers clear_database_tables.
type ClearDatabaseResponse struct {
	Success bool     `json:"success"`
	Dropped []string `json:"dropped,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ForceSyncResponse answers force_sync_request.
type ForceSyncResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
