package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aesthetisim/logging"
	"aesthetisim/simulation"
)

// Broadcaster fans WebSocket messages out to every connected dashboard
// client. It also implements simulation.Notifier so status changes flow
// straight from the coordinator to the browser.
//
// Call Start in a goroutine; it runs until the context is cancelled.
type Broadcaster struct {
	clients   map[*websocket.Conn]clientInfo
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	upgrader websocket.Upgrader
	logger   *logging.Logger

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64

	// initialState, when set, produces the snapshot sent to each client
	// right after it connects.
	initialState func() InitialData
}

type clientInfo struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// BroadcasterConfig tunes connection keep-alive and buffering.
type BroadcasterConfig struct {
	PingInterval         time.Duration
	PongWait             time.Duration
	WriteWait            time.Duration
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
}

// DefaultBroadcasterConfig returns the production defaults.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 256,
	}
}

// NewBroadcaster creates a Broadcaster with default configuration.
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	return NewBroadcasterWithConfig(logger, DefaultBroadcasterConfig())
}

// NewBroadcasterWithConfig creates a Broadcaster with custom tuning.
func NewBroadcasterWithConfig(logger *logging.Logger, cfg BroadcasterConfig) *Broadcaster {
	return &Broadcaster{
		clients:        make(map[*websocket.Conn]clientInfo),
		broadcast:      make(chan WSMessage, cfg.BroadcastBufferSize),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		logger:         logger,
		pingInterval:   cfg.PingInterval,
		pongWait:       cfg.PongWait,
		writeWait:      cfg.WriteWait,
		maxMessageSize: cfg.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin deployment; the session cookie is the gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetInitialStateFunc installs the snapshot producer for new clients.
// Must be called before Start.
func (b *Broadcaster) SetInitialStateFunc(fn func() InitialData) {
	b.initialState = fn
}

// Start runs the registration and broadcast loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	pingTicker := time.NewTicker(b.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAllClients()
			return
		case conn := <-b.register:
			b.addClient(conn)
		case conn := <-b.unregister:
			b.removeClient(conn)
		case msg := <-b.broadcast:
			b.broadcastToAll(msg)
		case <-pingTicker.C:
			b.pingAll()
		}
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket and registers
// the client.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logWarn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(b.pongWait))
		return nil
	})

	b.register <- conn
	go b.readPump(conn)
}

// Broadcast queues a message for every client. Non-blocking: when the
// buffer is full the message is dropped, never the request.
func (b *Broadcaster) Broadcast(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logWarn("broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// NotifyStatus implements simulation.Notifier.
func (b *Broadcaster) NotifyStatus(rec *simulation.Record) {
	b.Broadcast(NewSimulationUpdateMessage(SimulationUpdateFromRecord(rec)))
}

// BroadcastBackendStatus pushes a backend state change to all clients.
func (b *Broadcaster) BroadcastBackendStatus(data BackendStatusData) {
	b.Broadcast(NewBackendStatusMessage(data))
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client. Used on shutdown paths that never
// cancelled the Start context.
func (b *Broadcaster) Close() {
	b.closeAllClients()
}

func (b *Broadcaster) addClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	info := clientInfo{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, 256),
	}
	b.clients[conn] = info
	total := len(b.clients)
	b.clientsMu.Unlock()

	go b.writePump(conn, info.send)

	if b.initialState != nil {
		b.sendToClient(conn, NewInitialMessage(b.initialState()))
	}

	b.logDebug("dashboard client connected",
		zap.String("remote", info.remoteAddr),
		zap.Int("total", total),
	)
}

func (b *Broadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if info, ok := b.clients[conn]; ok {
		close(info.send)
		delete(b.clients, conn)
		conn.Close()
		b.logDebug("dashboard client disconnected",
			zap.String("remote", info.remoteAddr),
			zap.Int("total", len(b.clients)),
		)
	}
}

func (b *Broadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logWarn("marshalling broadcast message", zap.Error(err))
		return
	}

	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	for conn, info := range b.clients {
		select {
		case info.send <- data:
		default:
			// A stalled client loses its connection, not the server.
			b.logWarn("client send buffer full, closing", zap.String("remote", info.remoteAddr))
			go func(c *websocket.Conn) { b.unregister <- c }(conn)
		}
	}
}

func (b *Broadcaster) sendToClient(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logWarn("marshalling client message", zap.Error(err))
		return
	}

	b.clientsMu.RLock()
	info, ok := b.clients[conn]
	b.clientsMu.RUnlock()

	if ok {
		select {
		case info.send <- data:
		default:
			b.logWarn("client send buffer full", zap.String("remote", info.remoteAddr))
		}
	}
}

func (b *Broadcaster) pingAll() {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	for conn, info := range b.clients {
		conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			b.logDebug("ping failed", zap.String("remote", info.remoteAddr), zap.Error(err))
			go func(c *websocket.Conn) { b.unregister <- c }(conn)
		}
	}
}

func (b *Broadcaster) closeAllClients() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		close(info.send)
		conn.Close()
		delete(b.clients, conn)
	}
}

// readPump consumes client frames so pong handling and close detection
// work. Client payloads are otherwise ignored.
func (b *Broadcaster) readPump(conn *websocket.Conn) {
	defer func() { b.unregister <- conn }()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logDebug("unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}

func (b *Broadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()

	for message := range send {
		conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(b.writeWait))
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (b *Broadcaster) logWarn(msg string, fields ...zap.Field) {
	if b.logger != nil {
		b.logger.Warn(msg, fields...)
	}
}

func (b *Broadcaster) logDebug(msg string, fields ...zap.Field) {
	if b.logger != nil {
		b.logger.Debug(msg, fields...)
	}
}
