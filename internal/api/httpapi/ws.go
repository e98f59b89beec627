package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// handleWS upgrades the connection and subscribes it to the owner's
// change events. Browsers cannot set headers on websocket dials, so
// the token also rides in the query string.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	userID, err := s.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "user_id", userID, "error", err.Error())
		return
	}

	unsubscribe := s.hub.Subscribe(userID, conn)
	slog.Info("websocket session opened", "user_id", userID)

	go s.wsReadLoop(userID, conn, unsubscribe)
}

// wsReadLoop drains (and discards) client frames so pings and close
// handshakes are processed; it owns the connection teardown for reads.
func (s *Server) wsReadLoop(userID uint64, conn *websocket.Conn, unsubscribe func()) {
	defer func() {
		unsubscribe()
		_ = conn.Close()
		slog.Info("websocket session closed", "user_id", userID)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
