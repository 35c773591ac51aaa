package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/synctap/posbridge/pkg/csvbootstrap"
	"github.com/synctap/posbridge/pkg/dbconn"
	"github.com/synctap/posbridge/pkg/license"
	"github.com/synctap/posbridge/pkg/rowop"
	"github.com/synctap/posbridge/pkg/schema"
	"github.com/synctap/posbridge/pkg/session"
	"github.com/synctap/posbridge/pkg/tenant"
	"github.com/synctap/posbridge/pkg/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func testServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  - storeId: "239"
    appId: "A"
    licenseExpire: 2099-01-01T00:00:00Z
`), 0o600))
	dir, err := tenant.LoadDirectory(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	pool := dbconn.NewPool("root:rootpass@tcp(127.0.0.1:1)/%s", dbconn.NewDBConfig(), logger)
	cfg := &tenant.ServerConfig{
		UploadsDir:     filepath.Join(t.TempDir(), "uploads"),
		PingInterval:   50 * time.Millisecond,
		PingTimeout:    2 * time.Second,
		UpgradeTimeout: 2 * time.Second,
		MaxBufferSize:  1 << 20,
	}

	lic := license.New(dir)
	dispatcher := rowop.NewDispatcher(pool, dbconn.NewDBConfig(), logger)
	materialiser := schema.New(pool, dbconn.NewDBConfig(), logger)
	importer := csvbootstrap.NewImporter(pool, dbconn.NewDBConfig(), logger)
	controller := session.New(lic, dispatcher, materialiser, importer, pool, dbconn.NewDBConfig(), cfg, logger)

	return New(cfg, controller, logger)
}

func TestUpgradeIdentifyRoundTrip(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := wire.Encode(wire.EventIdentify, wire.Identify{
		StoreID: "239", AppID: "A", ServiceType: "pos_terminal",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := wire.DecodeEnvelope(reply)
	require.NoError(t, err)
	require.Equal(t, wire.EventIdentified, env.Event)
}

func TestPingPongKeepsConnectionAlive(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	pongReceived := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pongReceived <- struct{}{}:
		default:
		}
		return conn.WriteMessage(websocket.PongMessage, nil)
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()

	select {
	case <-pongReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a keep-alive ping")
	}
}

func TestLongPollingIdentifyRoundTrip(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	openResp, err := ts.Client().Get(ts.URL + "/socket.io/?transport=polling")
	require.NoError(t, err)
	defer openResp.Body.Close()
	require.Equal(t, 200, openResp.StatusCode)

	var opened struct {
		SID string `json:"sid"`
	}
	require.NoError(t, json.NewDecoder(openResp.Body).Decode(&opened))
	require.NotEmpty(t, opened.SID)

	frame, err := wire.Encode(wire.EventIdentify, wire.Identify{
		StoreID: "239", AppID: "A", ServiceType: "pos_terminal",
	})
	require.NoError(t, err)

	pollURL := ts.URL + "/socket.io/?transport=polling&sid=" + opened.SID
	postResp, err := ts.Client().Post(pollURL, "application/json", bytes.NewReader(frame))
	require.NoError(t, err)
	defer postResp.Body.Close()
	require.Equal(t, 200, postResp.StatusCode)

	getResp, err := ts.Client().Get(pollURL)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, 200, getResp.StatusCode)

	reply, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	env, err := wire.DecodeEnvelope(reply)
	require.NoError(t, err)
	require.Equal(t, wire.EventIdentified, env.Event)
}

func TestHealthzReportsOK(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}
