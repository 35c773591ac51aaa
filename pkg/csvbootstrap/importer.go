package csvbootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siddontang/loggers"

	"github.com/synctap/posbridge/pkg/dbconn"
)

// ImportResult is the outcome of importCSV.
type ImportResult struct {
	AffectedRows int64
	SkippedRows  int64
}

// Importer runs the bulk-import step of the CSV Bootstrap Pipeline
// Runs the import algorithm importCSV(database, table,
// filePath)).
type Importer struct {
	pool   *dbconn.Pool
	cfg    *dbconn.DBConfig
	logger loggers.Advanced
}

// NewImporter builds an Importer over an already-constructed connection
// pool.
func NewImporter(pool *dbconn.Pool, cfg *dbconn.DBConfig, logger loggers.Advanced) *Importer {
	return &Importer{pool: pool, cfg: cfg, logger: logger}
}

// ImportCSV runs the importCSV algorithm end to end. A metadata lock
// scoped to database keeps it from racing a concurrent
// clear_database_tables or force-sync drop against the same database,
// including one running on a different bridge process.
func (im *Importer) ImportCSV(ctx context.Context, database, table, filePath string) (ImportResult, error) {
	mdl, err := dbconn.NewMetadataLock(ctx, im.pool.DSN(database), dbconn.MetadataLockName(database), im.logger)
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvbootstrap: acquiring bootstrap lock for %s: %w", database, err)
	}
	defer mdl.Close()

	db, err := im.pool.Get(ctx, database)
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvbootstrap: acquiring pool connection for %s: %w", database, err)
	}

	// Step 1: introspect the target table.
	info, err := dbconn.ResolveTable(ctx, db, database, table)
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvbootstrap: resolving table %s: %w", table, err)
	}

	// Step 2: read the CSV header line.
	csvColumns, err := ReadHeader(filePath)
	if err != nil {
		return ImportResult{}, err
	}

	// Step 3: build the LOAD statement's user-variable bindings and SET
	// clauses, paired by positional index.
	n := len(csvColumns)
	if len(info.Columns) < n {
		n = len(info.Columns)
	}
	userVars := make([]string, n)
	setClauses := make([]string, n)
	for i := 0; i < n; i++ {
		v := SanitiseVarName(csvColumns[i], i)
		userVars[i] = v
		setClauses[i] = BuildSetClause(info.Columns[i], v)
	}

	// Step 4: detect line endings.
	lineEnding, err := DetectLineEnding(filePath)
	if err != nil {
		return ImportResult{}, err
	}

	opts := dbconn.BulkLoadOptions{
		TargetTable:        info.QuotedName,
		UserVars:           userVars,
		SetClauses:         setClauses,
		IgnoreDuplicates:   true,
		FieldsTerminatedBy: ",",
		LinesTerminatedBy:  lineEnding,
		SkipHeaderLine:     true,
	}

	// Step 5: execute via the bulk-load probes, in order, on a single
	// pinned connection so the SHOW WARNINGS scan that follows reflects
	// this exact statement.
	conn, err := db.Conn(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvbootstrap: acquiring connection: %w", err)
	}
	defer conn.Close()

	affected, err := im.bulkLoad(ctx, db, conn, opts, filePath)
	if err != nil {
		return ImportResult{}, err
	}

	// Step 6: count duplicate-key diagnostics as skipped rows.
	codes, err := dbconn.ShowWarnings(ctx, conn)
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvbootstrap: scanning warnings: %w", err)
	}
	var skipped int64
	for _, c := range codes {
		if c == "1062" {
			skipped++
		}
	}

	// Step 7: unlink the uploaded source file.
	if err := Cleanup(filePath); err != nil {
		im.logger.Warnf("csvbootstrap: failed to remove import source %s: %v", filePath, err)
	}

	return ImportResult{AffectedRows: affected, SkippedRows: skipped}, nil
}

// bulkLoad attempts the three load probes, in order:
// LOAD DATA LOCAL INFILE, then LOAD DATA INFILE via a secure-file-priv
// copy, then a diagnostic error naming both attempts.
func (im *Importer) bulkLoad(ctx context.Context, db *sql.DB, conn *sql.Conn, opts dbconn.BulkLoadOptions, filePath string) (int64, error) {
	localOK, err := dbconn.LocalInfileEnabled(ctx, db)
	if err == nil && localOK {
		f, ferr := os.Open(filePath)
		if ferr != nil {
			return 0, fmt.Errorf("csvbootstrap: opening %s for local-infile load: %w", filePath, ferr)
		}
		defer f.Close()
		n, loadErr := dbconn.LoadReaderConn(ctx, conn, opts, f)
		if loadErr == nil {
			return n, nil
		}
		localErr := loadErr

		secureDir, serr := dbconn.SecureFileDir(ctx, db)
		if serr == nil && secureDir != "" {
			if n, err := im.loadViaSecureDir(ctx, conn, opts, filePath, secureDir); err == nil {
				return n, nil
			}
		}
		return 0, fmt.Errorf("csvbootstrap: local-infile load failed (%v); no usable secure-file-priv directory configured", localErr)
	}

	secureDir, err := dbconn.SecureFileDir(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("csvbootstrap: querying secure_file_priv: %w", err)
	}
	if secureDir == "" {
		return 0, fmt.Errorf("csvbootstrap: neither local_infile nor a secure_file_priv directory is available on the target server")
	}
	return im.loadViaSecureDir(ctx, conn, opts, filePath, secureDir)
}

// loadViaSecureDir copies filePath into the server's secure-file
// directory, runs LOAD DATA INFILE against the copy, and removes the
// copy afterward.
func (im *Importer) loadViaSecureDir(ctx context.Context, conn *sql.Conn, opts dbconn.BulkLoadOptions, filePath, secureDir string) (int64, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("csvbootstrap: reading %s: %w", filePath, err)
	}
	copyPath := filepath.Join(secureDir, filepath.Base(filePath))
	if err := os.WriteFile(copyPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("csvbootstrap: copying into secure-file directory %s: %w", secureDir, err)
	}
	defer func() { _ = os.Remove(copyPath) }()

	n, err := dbconn.LoadFileConn(ctx, conn, opts, copyPath)
	if err != nil {
		return 0, fmt.Errorf("csvbootstrap: LOAD DATA INFILE via secure-file directory: %w", err)
	}
	return n, nil
}
