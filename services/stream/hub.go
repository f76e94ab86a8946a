package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lof_arb_api/logger"
	"lof_arb_api/models"
)

const (
	maxClients    = 100
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 8
)

// snapshotMessage is the wire frame pushed to every connected client when the
// cache publishes a new ResultSet.
type snapshotMessage struct {
	Type       string              `json:"type"`
	UpdateTime string              `json:"update_time"`
	Count      int                 `json:"count"`
	Data       []models.FundRecord `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes each newly published snapshot to all connected WebSocket
// clients. Clients only listen; there is no subscription protocol.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	shutdown   chan struct{}
	upgrader   websocket.Upgrader
}

// NewHub creates the hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go h.run()
	return h
}

// Publish queues a snapshot for delivery to all clients. Safe to call from
// the cache's publish hook.
func (h *Hub) Publish(rs *models.ResultSet) {
	msg := snapshotMessage{
		Type:       "snapshot",
		UpdateTime: rs.UpdateTime(),
		Count:      rs.Count(),
		Data:       rs.Records,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WithComponent("stream").WithError(err).Error("marshal snapshot")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.WithComponent("stream").Warn("broadcast queue full, dropping snapshot")
	}
}

// Shutdown closes all client connections and stops the dispatch loop.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case c := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxClients {
				h.mu.Unlock()
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity"))
				c.conn.Close()
				continue
			}
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.WithComponent("stream").WithFields(logger.Fields{"clients": count}).
				Info("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logger.WithComponent("stream").WithFields(logger.Fields{"clients": count}).
				Info("client disconnected")

		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client, drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades the request and attaches the client to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("stream").WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
