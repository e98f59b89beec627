package push

import (
	"log/slog"
	"sync"
	"time"
)

// Conn is the slice of a websocket connection the hub needs. Writes go
// through a single goroutine per hub call; the hub never reads.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type session struct {
	userID uint64
	conn   Conn
}

// Hub fans change events out to the owner's live sessions. A user may
// hold several sessions (tabs, devices); a write failure tears down
// that one session and never blocks the others.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint64]map[*session]struct{}

	writeTimeout time.Duration
}

func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		sessions:     map[uint64]map[*session]struct{}{},
		writeTimeout: writeTimeout,
	}
}

// Subscribe registers a connection for the user and returns an
// unsubscribe func. The hub closes the connection on write failure;
// the caller closes it on read failure or shutdown.
func (h *Hub) Subscribe(userID uint64, conn Conn) func() {
	s := &session{userID: userID, conn: conn}

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = map[*session]struct{}{}
	}
	h.sessions[userID][s] = struct{}{}
	h.mu.Unlock()

	return func() { h.drop(s) }
}

// Publish delivers v to every live session of the user.
func (h *Hub) Publish(userID uint64, v interface{}) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err == nil {
			err = s.conn.WriteJSON(v)
			if err == nil {
				continue
			}
			slog.Debug("drop session after failed write", "user_id", userID, "error", err.Error())
		}
		h.drop(s)
		_ = s.conn.Close()
	}
}

// SessionCount reports the user's live session count.
func (h *Hub) SessionCount(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Shutdown closes every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	all := h.sessions
	h.sessions = map[uint64]map[*session]struct{}{}
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			_ = s.conn.Close()
		}
	}
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[s.userID]
	if set == nil {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, s.userID)
	}
}
