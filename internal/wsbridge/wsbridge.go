// Package wsbridge streams load lifecycle events to browser clients over
// websockets and accepts simple commands back.
package wsbridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taigrr/threedviewer/pkg/pipeline"
)

const (
	writeTimeout = 5 * time.Second
	// sendQueue is how many messages may wait for a slow client before
	// it is dropped.
	sendQueue = 16
)

// Command is a client request, e.g. {"op":"cancel"}.
type Command struct {
	Op  string  `json:"op"`
	Arg string  `json:"arg,omitempty"`
	X   float64 `json:"x,omitempty"`
	Y   float64 `json:"y,omitempty"`
}

// Reply answers a command.
type Reply struct {
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// CommandFunc handles one command.
type CommandFunc func(Command) (any, error)

// Hub fans events out to every connected client. New clients first
// receive the most recent event. Each client has its own writer so a
// stalled peer never delays the others.
type Hub struct {
	Upgrader websocket.Upgrader
	// OnCommand handles client messages. Nil ignores them.
	OnCommand CommandFunc

	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a hub accepting connections from any origin.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues ev for every client and never waits on the network. A
// client whose queue is full is dropped. It has the pipeline observer
// signature so it can be passed to Subscribe directly.
func (h *Hub) Publish(ev pipeline.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("dropping slow client", zap.String("remote", c.conn.RemoteAddr().String()))
		h.removeLocked(c)
	}
}

// removeLocked closes the send queue once; the writer then shuts the
// connection.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("write failed", zap.String("remote", c.conn.RemoteAddr().String()), zap.Error(err))
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
		time.Now().Add(time.Second))
}

// ServeHTTP upgrades the request and keeps the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writePump(c)
	h.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		h.logger.Debug("client disconnected", zap.String("remote", r.RemoteAddr))
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handle(c, msg)
	}
}

func (h *Hub) handle(c *client, msg []byte) {
	if h.OnCommand == nil {
		return
	}
	var cmd Command
	reply := Reply{}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		reply.Error = "invalid command: " + err.Error()
	} else {
		reply.Op = cmd.Op
		data, err := h.OnCommand(cmd)
		if err != nil {
			reply.Error = err.Error()
		} else {
			reply.OK, reply.Data = true, data
		}
	}
	out, err := json.Marshal(reply)
	if err != nil {
		h.logger.Error("marshal reply", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, out)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
