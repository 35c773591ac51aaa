package dbconn

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	customTLSConfigName = "posbridge-custom"
	maxConnLifetime      = time.Minute * 3
	maxIdleConns         = 10
)

var tlsRegisterOnce sync.Once

// newTLSConfig builds a *tls.Config for the given mode. With no certificate
// path the system root pool is used, which is the common case: most
// terminal-side MySQL targets sit behind a managed cloud database whose
// certificate chains to a public root.
func newTLSConfig(config *DBConfig) (*tls.Config, error) {
	mode := strings.ToUpper(config.TLSMode)
	if mode == "" {
		mode = "PREFERRED"
	}
	var pool *x509.CertPool
	if config.TLSCertificatePath != "" {
		pem, err := os.ReadFile(config.TLSCertificatePath)
		if err != nil {
			return nil, fmt.Errorf("reading TLS certificate %s: %w", config.TLSCertificatePath, err)
		}
		pool = x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", config.TLSCertificatePath)
		}
	}
	switch mode {
	case "DISABLED":
		return nil, nil
	case "PREFERRED", "REQUIRED":
		return &tls.Config{RootCAs: pool, InsecureSkipVerify: true}, nil
	case "VERIFY_CA":
		return &tls.Config{RootCAs: pool, InsecureSkipVerify: true,
			VerifyPeerCertificate: verifyChainOnly(pool)}, nil
	case "VERIFY_IDENTITY":
		return &tls.Config{RootCAs: pool}, nil
	default:
		return &tls.Config{RootCAs: pool, InsecureSkipVerify: true}, nil
	}
}

// verifyChainOnly validates the certificate chain against pool but skips
// hostname verification, the behaviour MySQL's VERIFY_CA ssl-mode
// documents (as opposed to VERIFY_IDENTITY, which also checks the name).
func verifyChainOnly(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no certificates provided")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parsing certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: pool, Intermediates: intermediates})
		if err != nil {
			return fmt.Errorf("certificate verification failed: %w", err)
		}
		return nil
	}
}

// newDSN appends session-standardisation parameters and TLS configuration
// to a caller-supplied DSN. Explicit tls= parameters in the input DSN are
// always respected as-is.
func newDSN(dsn string, config *DBConfig) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}

	if cfg.TLSConfig == "" && strings.ToUpper(config.TLSMode) != "DISABLED" {
		tlsConfig, err := newTLSConfig(config)
		if err != nil {
			return "", err
		}
		if tlsConfig != nil {
			var registerErr error
			tlsRegisterOnce.Do(func() {
				registerErr = mysql.RegisterTLSConfig(customTLSConfigName, tlsConfig)
			})
			if registerErr != nil && !strings.Contains(registerErr.Error(), "already registered") {
				return "", registerErr
			}
			cfg.TLSConfig = customTLSConfigName
		}
	}

	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["sql_mode"] = `""`
	cfg.Params["time_zone"] = `"+00:00"`
	cfg.Params["innodb_lock_wait_timeout"] = strconv.Itoa(config.InnodbLockWaitTimeout)
	cfg.Params["lock_wait_timeout"] = strconv.Itoa(config.LockWaitTimeout)
	cfg.Params["charset"] = "utf8mb4"
	cfg.Collation = "utf8mb4_0900_ai_ci"
	// Recycle the connection if it lands on a read-only replica during a
	// failover — observed on managed MySQL during blue/green cutovers.
	cfg.RejectReadOnly = true
	cfg.AllowNativePasswords = true
	cfg.AllowCleartextPasswords = cfg.TLSConfig != ""

	return cfg.FormatDSN(), nil
}

// New opens a pooled connection for one physical database and pings it
// once before returning. Callers go through Pool rather than calling this
// directly; Pool owns the one-per-database lifetime.
func New(inputDSN string, config *DBConfig) (*sql.DB, error) {
	dsn, err := newDSN(inputDSN, config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConnections)
	db.SetConnMaxLifetime(maxConnLifetime)
	db.SetMaxIdleConns(maxIdleConns)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}
