// Package ws serves the observer websocket endpoint.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/runwatch/internal/config"
	"github.com/xiaot623/gogo/runwatch/internal/hub"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

// SnapshotSource provides the state sent to a newly connected observer.
type SnapshotSource interface {
	Snapshot() state.Snapshot
}

// Server handles observer websocket connections. Observers only listen;
// anything they send is read and discarded to keep pongs flowing.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	source   SnapshotSource
	upgrader websocket.Upgrader
}

// NewServer creates a new websocket server.
func NewServer(cfg *config.Config, h *hub.Hub, source SnapshotSource) *Server {
	return &Server{
		cfg:    cfg,
		hub:    h,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
// GET /ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	// The snapshot is read on the hub loop at registration, so no change can
	// fall between it and the first broadcast.
	s.hub.RegisterWithSnapshot(conn, s.source.Snapshot)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error", "conn_id", conn.ID, "error", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
