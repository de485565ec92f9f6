package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds relay server settings.
type Config struct {
	Port int
	Path string

	// SendBuffer is the per-client queue depth. A client whose queue is
	// full when a message arrives gets disconnected.
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultConfig returns the production relay defaults.
func DefaultConfig() Config {
	return Config{
		Port:         8081,
		Path:         "/stream",
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub runs the WebSocket server and fans stream messages out to every
// connected client. It satisfies the sink interface.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	server *http.Server
	wg     sync.WaitGroup
}

// NewHub creates a Hub. A nil logger falls back to slog.Default.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// OnMessage broadcasts a raw stream message to all clients.
func (h *Hub) OnMessage(msg json.RawMessage) {
	h.Broadcast(msg)
}

// OnRateLimited is a no-op; clients only see messages.
func (h *Hub) OnRateLimited() {}

// OnError is a no-op; stream errors are handled upstream.
func (h *Hub) OnError(error) {}

// Start begins serving WebSocket connections.
func (h *Hub) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(h.cfg.Path, h.handleUpgrade)

	h.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.cfg.Port),
		Handler: mux,
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("relay server failed", "error", err)
		}
	}()

	h.logger.Info("relay started", "port", h.cfg.Port, "path", h.cfg.Path)
	return nil
}

// Stop closes the server and disconnects all clients.
func (h *Hub) Stop(ctx context.Context) error {
	h.logger.Info("stopping relay")

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Warn("relay shutdown", "error", err)
		}
	}
	h.wg.Wait()

	h.logger.Info("relay stopped")
	return nil
}

// Broadcast queues msg to every connected client. Clients with a full
// queue are dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow relay client",
				"addr", c.conn.RemoteAddr(),
			)
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("relay client connected",
		"addr", conn.RemoteAddr(),
		"clients", count,
	)

	h.wg.Add(2)
	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client queue onto the socket and keeps the
// connection alive with pings. Exits when the queue is closed.
func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards inbound traffic; the relay is one-way. It exists so
// close frames and pongs are processed and dead connections are reaped.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// remove unregisters a client, closing its queue at most once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
