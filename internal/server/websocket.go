package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per subscriber before drops
	subscriberBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Shells run locally; the bridge listens on loopback by default
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades to a websocket and streams every hub event as JSON
// until the client disconnects or the server shuts down
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		writeJSON(w, http.StatusServiceUnavailable, control.Result{Error: "server is shutting down"})
		return
	}
	defer s.wg.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Failed to upgrade to WebSocket",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := conn.RemoteAddr().String()

	// Shutdown may have swept activeConns while the upgrade ran
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.Info("Event stream closed", zap.String("remote_addr", remoteAddr))
	}()

	logging.Info("Event stream opened", zap.String("remote_addr", remoteAddr))

	stream, unsubscribe := s.hub.Subscribe(subscriberBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go readClient(conn, remoteAddr, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				logging.Warn("Failed to write event",
					zap.String("remote_addr", remoteAddr),
					zap.String("event", ev.Name),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logging.Debug("Ping failed, connection likely broken",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

// readClient drains client frames so pongs and close frames are processed,
// and closes done when the connection ends
func readClient(conn *websocket.Conn, remoteAddr string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Unexpected WebSocket close",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}
