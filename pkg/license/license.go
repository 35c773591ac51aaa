// Package license is the authoritative lookup over the tenant directory.
// It answers both "is this (storeId, appId) pair valid and unexpired?"
// and "which physical database does it map to?" with the same query,
// because a session must never be able to reach the dispatcher without
// being routable to exactly one database.
package license

import (
	"context"
	"math"
	"time"

	"github.com/synctap/posbridge/pkg/tenant"
)

// StoreInfo is the snapshot returned by a successful Validate call.
type StoreInfo struct {
	StoreID       string
	StoreName     string
	AppID         string
	LicenseExpire time.Time
	DaysRemaining int
}

// Result is the outcome of validating one (storeId, appId) pair.
type Result struct {
	Valid   bool
	Expired bool
	Store   *StoreInfo
	Err     string
}

// Clock lets tests control "now"; production uses time.Now.
type Clock func() time.Time

// Service is the License/Tenant Service.
type Service struct {
	dir   *tenant.Directory
	clock Clock
}

// New builds a license Service over an already-loaded tenant directory.
func New(dir *tenant.Directory) *Service {
	return &Service{dir: dir, clock: time.Now}
}

// WithClock overrides the wall clock, for deterministic license-expiry
// tests.
func (s *Service) WithClock(clock Clock) *Service {
	s.clock = clock
	return s
}

// Validate runs the license validation operation.
func (s *Service) Validate(_ context.Context, storeID, appID string) Result {
	rec, ok := s.dir.Lookup(storeID, appID)
	if !ok {
		return Result{Valid: false, Expired: true, Err: "store not found or invalid app"}
	}
	now := s.clock()
	expired := !rec.LicenseExpire.After(now)
	info := &StoreInfo{
		StoreID:       rec.StoreID,
		StoreName:     rec.StoreName,
		AppID:         rec.AppID,
		LicenseExpire: rec.LicenseExpire,
	}
	if !expired {
		info.DaysRemaining = int(math.Ceil(rec.LicenseExpire.Sub(now).Hours() / 24))
	}
	return Result{Valid: true, Expired: expired, Store: info}
}

// DatabaseFor resolves the per-tenant database name: the
// physical database name equals appId iff the pair is a known tenant.
func (s *Service) DatabaseFor(storeID, appID string) (string, bool) {
	if _, ok := s.dir.Lookup(storeID, appID); !ok {
		return "", false
	}
	return appID, true
}

// HealthCheck reports whether the tenant directory is loaded; a loaded
// directory with no tenants passes. It never touches the network: the directory is an
// in-memory snapshot, so there is nothing else to probe.
func (s *Service) HealthCheck(_ context.Context) error {
	if s.dir == nil {
		return errDirectoryNotLoaded
	}
	return nil
}

// Close is a no-op today, but is part of the documented contract
// so callers can treat the Service like any other
// closable resource.
func (s *Service) Close() error {
	return nil
}
