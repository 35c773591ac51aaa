package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/siddontang/loggers"
)

// Pool hands out one *sql.DB per physical database name, created lazily
// on first use from a DSN template. A session never opens its own connection: it asks the
// pool for the database it was routed to.
type Pool struct {
	dsnTemplate string
	config      *DBConfig
	logger      loggers.Advanced

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewPool builds a Pool. dsnTemplate must contain exactly one %s, which
// is replaced with the physical database name.
func NewPool(dsnTemplate string, config *DBConfig, logger loggers.Advanced) *Pool {
	return &Pool{
		dsnTemplate: dsnTemplate,
		config:      config,
		logger:      logger,
		conns:       make(map[string]*sql.DB),
	}
}

// Get returns the *sql.DB for database, opening and pinging a new one on
// first use. A later liveness failure evicts the entry so the next Get
// rebuilds it rather than handing back a connection pool stuck to a dead
// backend.
func (p *Pool) Get(ctx context.Context, database string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.conns[database]; ok {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		p.logger.Warnf("connection to database %s failed liveness probe, rebuilding: dropping pooled handle", database)
		_ = db.Close()
		delete(p.conns, database)
	}

	dsn := fmt.Sprintf(p.dsnTemplate, database)
	db, err := New(dsn, p.config)
	if err != nil {
		return nil, fmt.Errorf("opening pool connection for database %s: %w", database, err)
	}
	p.conns[database] = db
	return db, nil
}

// DSN returns the fully-substituted DSN for database, for callers (e.g.
// MetadataLock) that need their own dedicated connection outside the
// pool rather than a handle from Get.
func (p *Pool) DSN(database string) string {
	return fmt.Sprintf(p.dsnTemplate, database)
}

// Evict closes and forgets the pooled connection for database, if any.
// force_sync_request calls this after a DROP so a subsequent
// reconnect doesn't reuse session state tied to dropped tables.
func (p *Pool) Evict(database string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.conns[database]; ok {
		_ = db.Close()
		delete(p.conns, database)
	}
}

// Close closes every pooled connection. Called once at server shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, db := range p.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing pooled connection %s: %w", name, err)
		}
	}
	p.conns = make(map[string]*sql.DB)
	return firstErr
}

// Len reports how many databases currently have a live pooled
// connection. Used by tests and health checks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
