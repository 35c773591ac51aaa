// Package session is the Session Controller: the per-connection state
// machine that gates identification, license checks, and event routing
// for everything a replication peer sends after it connects.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/license"
)

// State is one point in the per-connection lifecycle.
type State int32

const (
	StateNew State = iota
	StateIdentifying
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdentifying:
		return "identifying"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender is the transport-facing half of a session: encode and write one
// event, or tear the connection down. Implementations live in pkg/server.
type Sender interface {
	Send(event string, payload any) error
	Close() error
}

// Session is one accepted connection's mutable state. Everything except
// state, the full-sync flag and the pending-upload map is set once, at
// identification, and read-only thereafter.
type Session struct {
	ID     string
	sender Sender

	state atomic.Int32

	mu          sync.Mutex
	storeID     string
	appID       string
	serviceType string
	database    string
	licenseInfo *license.StoreInfo

	fullSyncActive bool
	pendingUploads map[string]*csvbootstrap.ChunkAccumulator
}

func newSession(id string, sender Sender) *Session {
	return &Session{
		ID:             id,
		sender:         sender,
		pendingUploads: make(map[string]*csvbootstrap.ChunkAccumulator),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// bind records the identified tenant; handleIdentify moves the session to
// ready itself after calling it. It is only ever called once, from
// handleIdentify.
func (s *Session) bind(storeID, appID, serviceType, database string, info *license.StoreInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeID = storeID
	s.appID = appID
	s.serviceType = serviceType
	s.database = database
	s.licenseInfo = info
}

// StoreID, AppID, Database return the tenant fields bound at
// identification. They are safe to call concurrently with event
// handling since they are never mutated after bind.
func (s *Session) StoreID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeID
}

func (s *Session) AppID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID
}

func (s *Session) Database() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.database
}

func (s *Session) setFullSyncActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullSyncActive = active
}

func (s *Session) isFullSyncActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullSyncActive
}

// upload returns the in-progress accumulator for (appId, fileName), if
// any.
func (s *Session) upload(appID, fileName string) (*csvbootstrap.ChunkAccumulator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.pendingUploads[csvbootstrap.Key(appID, fileName)]
	return acc, ok
}

func (s *Session) putUpload(appID, fileName string, acc *csvbootstrap.ChunkAccumulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingUploads[csvbootstrap.Key(appID, fileName)] = acc
}

func (s *Session) dropUpload(appID, fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingUploads, csvbootstrap.Key(appID, fileName))
}

// Cancel drops every pending chunk reassembly and clears the full-sync
// flag. It is called once on disconnect; in-flight database operations
// started before the call may still complete, but nothing further is
// sent to the peer.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.pendingUploads = make(map[string]*csvbootstrap.ChunkAccumulator)
	s.fullSyncActive = false
	s.mu.Unlock()
	s.setState(StateClosed)
}

// rejectAndClose sends a terminal error event, then closes the transport
// after a short grace period so the peer can observe why.
func (s *Session) rejectAndClose(event string, payload any, grace time.Duration) error {
	s.setState(StateClosed)
	err := s.sender.Send(event, payload)
	time.AfterFunc(grace, func() { _ = s.sender.Close() })
	return err
}
