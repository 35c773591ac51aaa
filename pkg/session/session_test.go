package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/license"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/schema"
	"github.com/synctap/posbridge/pkg/tenant"
	"github.com/synctap/posbridge/pkg/wire"
)

// fakeSender records every event a handler sends and lets tests observe
// a grace-period close without a real transport.
type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
	closed bool
}

type sentEvent struct {
	event   string
	payload any
}

func (f *fakeSender) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{event: event, payload: payload})
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) last() sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return sentEvent{}
	}
	return f.events[len(f.events)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testController(t *testing.T, yamlContents string) *Controller {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContents), 0o600))
	dir, err := tenant.LoadDirectory(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	pool := dbconn.NewPool("root:rootpass@tcp(127.0.0.1:1)/%s", dbconn.NewDBConfig(), logger)
	cfg := &tenant.ServerConfig{UploadsDir: filepath.Join(t.TempDir(), "uploads")}

	lic := license.New(dir)
	dispatcher := rowop.NewDispatcher(pool, dbconn.NewDBConfig(), logger)
	materialiser := schema.New(pool, dbconn.NewDBConfig(), logger)
	importer := csvbootstrap.NewImporter(pool, dbconn.NewDBConfig(), logger)

	return New(lic, dispatcher, materialiser, importer, pool, dbconn.NewDBConfig(), cfg, logger)
}

func envelope(t *testing.T, event string, payload any) wire.Envelope {
	t.Helper()
	raw, err := wire.Encode(event, payload)
	require.NoError(t, err)
	env, err := wire.DecodeEnvelope(raw)
	require.NoError(t, err)
	return env
}

func TestIdentifyLegacySessionReachesReady(t *testing.T) {
	c := testController(t, `
tenants:
  - storeId: "239"
    appId: "A"
    licenseExpire: 2099-01-01T00:00:00Z
`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)

	err := c.HandleEvent(context.Background(), sess, envelope(t, wire.EventIdentify, wire.Identify{
		StoreID: "239", AppID: "A", ServiceType: "pos_terminal",
	}))
	require.NoError(t, err)

	assert.Equal(t, StateReady, sess.State())
	assert.Equal(t, wire.EventIdentified, sender.last().event)
	assert.Equal(t, "239", sess.StoreID())
	assert.Equal(t, "A", sess.Database())
}

func TestIdentifyExpiredLicenseRejectsAndCloses(t *testing.T) {
	c := testController(t, `
tenants:
  - storeId: "239"
    appId: "A"
    licenseExpire: 2020-01-01T00:00:00Z
`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)

	err := c.HandleEvent(context.Background(), sess, envelope(t, wire.EventIdentify, wire.Identify{
		StoreID: "239", AppID: "A", ServiceType: "advanced_online_report",
	}))
	require.NoError(t, err)

	assert.Equal(t, StateClosed, sess.State())
	last := sender.last()
	assert.Equal(t, wire.EventLicenseExpired, last.event)
	lic, ok := last.payload.(wire.LicenseError)
	require.True(t, ok)
	assert.Equal(t, 410, lic.Code)

	require.Eventually(t, sender.isClosed, 2*time.Second, 10*time.Millisecond)
}

func TestIdentifyUnknownStoreRejects(t *testing.T) {
	c := testController(t, `
tenants: []
`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)

	err := c.HandleEvent(context.Background(), sess, envelope(t, wire.EventIdentify, wire.Identify{
		StoreID: "1", AppID: "1", ServiceType: "pos_terminal",
	}))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, sess.State())
	assert.Equal(t, wire.EventIdentificationError, sender.last().event)
}

func TestEventsBeforeReadyAreIgnored(t *testing.T) {
	c := testController(t, `tenants: []`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)

	err := c.HandleEvent(context.Background(), sess, envelope(t, wire.EventSyncData, wire.SyncData{TableName: "Sales"}))
	require.NoError(t, err)
	assert.Equal(t, 0, sender.count())
	assert.Equal(t, StateNew, sess.State())
}

func TestPingAlwaysRespondsPong(t *testing.T) {
	c := testController(t, `tenants: []`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)

	err := c.HandleEvent(context.Background(), sess, envelope(t, wire.EventPing, struct{}{}))
	require.NoError(t, err)
	assert.Equal(t, wire.EventPong, sender.last().event)
}

func TestDisconnectCancelsPendingUploads(t *testing.T) {
	c := testController(t, `
tenants:
  - storeId: "239"
    appId: "A"
    licenseExpire: 2099-01-01T00:00:00Z
`)
	sender := &fakeSender{}
	sess := c.NewSession("conn-1", sender)
	require.NoError(t, c.HandleEvent(context.Background(), sess, envelope(t, wire.EventIdentify, wire.Identify{
		StoreID: "239", AppID: "A", ServiceType: "pos_terminal",
	})))

	require.NoError(t, c.HandleEvent(context.Background(), sess, envelope(t, wire.EventCSVBulkUploadStart, wire.CSVBulkUploadStart{
		TableName: "StockItems", FileName: "seed.csv", TotalChunks: 3, RowCount: 10,
	})))
	_, ok := sess.upload("A", "seed.csv")
	require.True(t, ok)

	c.HandleDisconnect(sess)
	assert.Equal(t, StateClosed, sess.State())
	_, ok = sess.upload("A", "seed.csv")
	assert.False(t, ok)
	assert.False(t, sess.isFullSyncActive())
}
