package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rei1007/daigakuhai-support/internal/logging"
	"github.com/rei1007/daigakuhai-support/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Overlay is embedded as an OBS browser source
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		slog.Warn("Rejecting websocket connection", "ip", ip, "reason", reason)
		metrics.WebSocketConnectionsTotal.WithLabelValues(string(reason)).Inc()
		return c.String(http.StatusTooManyRequests, "Too many connections")
	}
	defer s.limits.Release()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	// A fresh id per connection; never persisted, never reused on reconnect.
	sessionID := uuid.NewString()

	// Connect snapshots the state and registers the session in one dispatcher
	// turn, so the welcome can never go stale against an in-flight mutation.
	err = s.dispatcher.Connect(sessionID, func(welcome []byte) error {
		return s.broadcaster.Register(sessionID, conn, welcome)
	})
	if err != nil {
		logging.WithSession(sessionID).Warn("Failed to register session", "error", err)
		metrics.WebSocketConnectionsTotal.WithLabelValues("room_full").Inc()
		_ = conn.Close()
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()
	logging.WithSession(sessionID).Info("Session connected")

	// Read pump — blocks until the connection closes. Every frame goes to the
	// dispatcher; bad frames are its problem, not a reason to hang up.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatcher.Dispatch(raw, sessionID)
	}

	s.broadcaster.Unregister(sessionID)
	logging.WithSession(sessionID).Info("Session disconnected")

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
