// Command bridged runs the replication bridge: it accepts websocket
// connections from POS terminals, validates their tenant licenses, and
// applies the row, DDL, schema, and bulk-load operations they send
// against the configured target store.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/license"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/schema"
	"github.com/synctap/posbridge/pkg/server"
	"github.com/synctap/posbridge/pkg/session"
	"github.com/synctap/posbridge/pkg/tenant"
)

var cli struct {
	tenant.ServerConfig
}

func main() {
	ctx := kong.Parse(&cli, kong.Name("bridged"), kong.Description("POS terminal replication bridge"))
	ctx.FatalIfErrorf(run(&cli.ServerConfig))
}

func run(cfg *tenant.ServerConfig) error {
	tenant.ServerConfigFromEnv(cfg)

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.TenantDirFile == "" {
		return fmt.Errorf("bridged: TENANT_DIRECTORY_FILE is required")
	}
	if cfg.TargetDSNTemplate == "" {
		return fmt.Errorf("bridged: TARGET_DSN_TEMPLATE is required")
	}

	dir, err := tenant.LoadDirectory(cfg.TenantDirFile)
	if err != nil {
		return fmt.Errorf("bridged: loading tenant directory: %w", err)
	}

	dbConfig := dbconn.NewDBConfig()
	pool := dbconn.NewPool(cfg.TargetDSNTemplate, dbConfig, logger)
	defer pool.Close()

	lic := license.New(dir)
	dispatcher := rowop.NewDispatcher(pool, dbConfig, logger)
	materialiser := schema.New(pool, dbConfig, logger)
	importer := csvbootstrap.NewImporter(pool, dbConfig, logger)

	controller := session.New(lic, dispatcher, materialiser, importer, pool, dbConfig, cfg, logger)
	srv := server.New(cfg, controller, logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("bridged: listener failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		logger.Info("bridged: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridged: graceful shutdown: %w", err)
		}
		return nil
	}
}
