// Package server is the Lifecycle component: it accepts websocket
// connections and HTTP long-polling sessions, drives each one through
// the Session Controller, and coordinates graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/siddontang/loggers"
	"golang.org/x/sync/errgroup"

	"github.com/synctap/posbridge/pkg/session"
	"github.com/synctap/posbridge/pkg/tenant"
)

// Server accepts and serves websocket connections for one listener.
type Server struct {
	cfg        *tenant.ServerConfig
	controller *session.Controller
	logger     loggers.Advanced
	upgrader   websocket.Upgrader
	httpServer *http.Server

	conns  connRegistry
	group  *errgroup.Group
	nextID atomic.Uint64

	pollsMu sync.Mutex
	polls   map[string]*pollEntry
}

// connRegistry tracks every connection currently being served, so
// Shutdown can close them instead of waiting on reads that will never
// return on their own.
type connRegistry struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func (r *connRegistry) add(id string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns == nil {
		r.conns = make(map[string]*websocket.Conn)
	}
	r.conns[id] = conn
}

func (r *connRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

func (r *connRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		_ = c.Close()
	}
}

// New builds a Server bound to cfg.Host:cfg.Port, routing every accepted
// connection through controller.
func New(cfg *tenant.ServerConfig, controller *session.Controller, logger loggers.Advanced) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		logger:     logger,
		group:      &errgroup.Group{},
		polls:      make(map[string]*pollEntry),
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout:  cfg.UpgradeTimeout,
		ReadBufferSize:    int(cfg.MaxBufferSize),
		WriteBufferSize:   int(cfg.MaxBufferSize),
		EnableCompression: false,
		CheckOrigin:       func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", s.handleSocketIO)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler, for tests that want to run
// it under httptest.NewServer instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
// http.ErrServerClosed from a clean Shutdown is swallowed; any other
// error is returned.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("server: listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new upgrades, closes every connection and
// long-poll session currently being served, waits for the websocket
// read loops to return, then reports the first connection-handling
// error, if any.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutting down listener: %w", err)
	}
	s.conns.closeAll()
	s.closeAllPolls()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("server: draining connections: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleSocketIO dispatches to the websocket or HTTP long-polling
// transport, following the same query-parameter convention Engine.IO
// clients use to request a transport (?transport=polling; websocket is
// the default when absent).
func (s *Server) handleSocketIO(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") == "polling" {
		s.handlePolling(w, r)
		return
	}
	s.handleUpgrade(w, r)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("server: upgrade failed: %v", err)
		return
	}

	id := fmt.Sprintf("conn-%d", s.nextID.Add(1))
	sender := newWSSender(conn)
	sess := s.controller.NewSession(id, sender)

	conn.SetReadLimit(s.cfg.MaxBufferSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
	})

	s.conns.add(id, conn)
	s.group.Go(func() error {
		s.serve(sess, sender, conn)
		return nil
	})
}

// serve is one connection's lifetime: a background keep-alive pinger and
// a foreground read loop that feeds frames to the controller until the
// connection errors, closes, or is closed by Shutdown.
func (s *Server) serve(sess *session.Session, sender *wsSender, conn *websocket.Conn) {
	defer func() {
		s.conns.remove(sess.ID)
		s.controller.HandleDisconnect(sess)
		_ = conn.Close()
	}()

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.keepAlive(sender, stopPing)

	ctx := context.Background()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := s.controller.HandleFrame(ctx, sess, frame); err != nil {
			s.logger.Warnf("server: session %s: %v", sess.ID, err)
		}
	}
}

func (s *Server) keepAlive(sender *wsSender, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sender.ping(s.cfg.PingTimeout); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
