package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue per client; clients that fall this far behind are
	// dropped.
	clientQueueSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// LAN control tool; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans state snapshots out to connected WebSocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info("WebSocket client connected",
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("clients", n),
	)
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info("WebSocket client disconnected",
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("clients", n),
	)
}

// broadcast queues a payload for every client. A client whose queue is
// full is dropped; a stalled consumer must not hold up the device
// update path.
func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	var dropped []*wsClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range dropped {
		logging.Warn("Dropping slow WebSocket client",
			zap.String("remote_addr", c.remoteAddr),
		)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// wsClient is one subscribed WebSocket connection.
type wsClient struct {
	hub        *hub
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte
}

// handleWebSocket serves GET /ws: upgrades the connection and streams
// state snapshots.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &wsClient{
		hub:        s.hub,
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan []byte, clientQueueSize),
	}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()

	// New subscribers get the current state immediately.
	if h := s.handler(); h != nil {
		s.broadcastState(h)
	}
}

// readPump consumes (and discards) client messages so pongs and close
// frames are processed. Control flows through the HTTP API, not the
// socket.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump flushes queued snapshots to the client and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
