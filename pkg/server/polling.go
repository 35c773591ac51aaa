package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/synctap/posbridge/pkg/session"
	"github.com/synctap/posbridge/pkg/wire"
)

// pollOutboxSize bounds how many not-yet-delivered frames a long-poll
// session queues before Send starts failing. A polling peer is expected
// to keep a GET outstanding at all times, so this is headroom for the
// gap between one GET completing and the next arriving, not a general
// buffer.
const pollOutboxSize = 64

// pollSession is one long-polling peer's Sender: instead of writing to
// a live socket, it queues outgoing frames for the next GET to deliver.
type pollSession struct {
	mu       sync.Mutex
	outbox   chan []byte
	lastSeen time.Time
	closed   bool
}

func newPollSession() *pollSession {
	return &pollSession{outbox: make(chan []byte, pollOutboxSize), lastSeen: time.Now()}
}

func (p *pollSession) Send(event string, payload any) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("server: long-poll session is closed")
	}
	select {
	case p.outbox <- frame:
		return nil
	default:
		return fmt.Errorf("server: long-poll session outbox is full")
	}
}

func (p *pollSession) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.outbox)
	}
	return nil
}

func (p *pollSession) touch() {
	p.mu.Lock()
	p.lastSeen = time.Now()
	p.mu.Unlock()
}

func (p *pollSession) idleFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastSeen)
}

// pollEntry pairs a long-poll Sender with the domain session it feeds.
type pollEntry struct {
	sender *pollSession
	sess   *session.Session
}

// handlePolling serves the HTTP long-polling transport: a GET with no
// sid opens a session and returns its id; a GET with a known sid blocks
// (up to PingInterval) for the next outgoing frame; a POST with a known
// sid delivers one incoming frame. This mirrors Engine.IO's own
// open-then-poll/post convention without implementing its framing —
// one event per HTTP body, matching the websocket transport's one
// event per message.
func (s *Server) handlePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "server: missing sid", http.StatusBadRequest)
			return
		}
		s.openPollSession(w)
		return
	}

	s.pollsMu.Lock()
	entry, ok := s.polls[sid]
	s.pollsMu.Unlock()
	if !ok {
		http.Error(w, "server: unknown poll session", http.StatusNotFound)
		return
	}
	entry.sender.touch()

	switch r.Method {
	case http.MethodPost:
		s.handlePollPost(w, r, entry)
	case http.MethodGet:
		s.handlePollGet(w, r, entry)
	default:
		http.Error(w, "server: method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) openPollSession(w http.ResponseWriter) {
	id := fmt.Sprintf("poll-%d", s.nextID.Add(1))
	sender := newPollSession()
	sess := s.controller.NewSession(id, sender)

	entry := &pollEntry{sender: sender, sess: sess}
	s.pollsMu.Lock()
	s.polls[id] = entry
	s.pollsMu.Unlock()

	go s.reapPollSession(id, entry)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		SID string `json:"sid"`
	}{SID: id})
}

func (s *Server) handlePollPost(w http.ResponseWriter, r *http.Request, entry *pollEntry) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBufferSize))
	if err != nil {
		http.Error(w, "server: reading poll body", http.StatusBadRequest)
		return
	}
	if err := s.controller.HandleFrame(r.Context(), entry.sess, body); err != nil {
		s.logger.Warnf("server: poll session %s: %v", entry.sess.ID, err)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePollGet(w http.ResponseWriter, r *http.Request, entry *pollEntry) {
	timer := time.NewTimer(s.cfg.PingInterval)
	defer timer.Stop()
	select {
	case frame, ok := <-entry.sender.outbox:
		if !ok {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(frame)
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

// reapPollSession evicts a poll session once it's gone longer than
// PingTimeout without a GET or POST touching it — long polling has no
// transport-level disconnect signal, so this is the only way a
// never-returning peer's session is ever cleaned up.
func (s *Server) reapPollSession(id string, entry *pollEntry) {
	ticker := time.NewTicker(s.cfg.PingTimeout)
	defer ticker.Stop()
	for range ticker.C {
		if entry.sender.idleFor() <= s.cfg.PingTimeout {
			continue
		}
		s.pollsMu.Lock()
		delete(s.polls, id)
		s.pollsMu.Unlock()
		s.controller.HandleDisconnect(entry.sess)
		_ = entry.sender.Close()
		return
	}
}

// closeAllPolls force-closes every live long-poll session, for
// Shutdown: a poll session has no socket to close, so it's the outbox
// close (unblocking any waiting GET with StatusGone) that plays the
// same role connRegistry.closeAll plays for websocket connections.
func (s *Server) closeAllPolls() {
	s.pollsMu.Lock()
	entries := make([]*pollEntry, 0, len(s.polls))
	for id, entry := range s.polls {
		entries = append(entries, entry)
		delete(s.polls, id)
	}
	s.pollsMu.Unlock()

	for _, entry := range entries {
		s.controller.HandleDisconnect(entry.sess)
		_ = entry.sender.Close()
	}
}
