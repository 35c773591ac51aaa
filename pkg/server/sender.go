package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synctap/posbridge/pkg/wire"
)

// wsSender adapts one accepted websocket connection to session.Sender.
// Gorilla forbids concurrent writers on the same connection, so every
// write — event frames and control pings alike — goes through the same
// mutex.
type wsSender struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

// Send encodes event/payload into one envelope frame and writes it.
func (w *wsSender) Send(event string, payload any) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close tears down the underlying connection.
func (w *wsSender) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

// ping writes a control ping frame, honouring the configured keep-alive
// timeout as the write deadline.
func (w *wsSender) ping(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}
