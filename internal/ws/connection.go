package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection: its identity,
// the underlying socket, activity bookkeeping for the heartbeat, and the
// egress queue drained by a dedicated writer goroutine.
type Connection struct {
	ID        string    // client ID (UUID), assigned at upgrade
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established

	lastActive int64      // unix nanos of the last observed activity (atomic)
	writeMu    sync.Mutex // serializes frames written to the socket
	processing int32      // atomic flag: 0 = idle, 1 = being read by a worker

	egress    chan []byte   // outbound frames awaiting the writer goroutine
	done      chan struct{} // closed exactly once when the connection dies
	closeOnce sync.Once
}

// newConnection creates a Connection with an egress queue of the given
// length. The writer goroutine is started by the server after registration.
func newConnection(id string, conn net.Conn, egressBuffer int) *Connection {
	c := &Connection{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
		egress:    make(chan []byte, egressBuffer),
		done:      make(chan struct{}),
	}
	c.Touch()
	return c
}

// Touch records activity on the connection for heartbeat accounting.
func (c *Connection) Touch() {
	atomic.StoreInt64(&c.lastActive, time.Now().UnixNano())
}

// LastActive returns the time of the most recent observed activity.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActive))
}

// Enqueue hands a frame to the connection's writer goroutine. It never
// blocks: a full queue or a dying connection reports false so the caller can
// treat the client as unreachable.
func (c *Connection) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.egress <- data:
		return true
	default:
		return false
	}
}

// WriteMessage writes a WebSocket text frame to the socket. The write mutex
// keeps the writer goroutine and heartbeat pings from interleaving frame
// bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close releases the writer goroutine and closes the underlying network
// connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry of live connections keyed by
// client ID.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{byID: make(map[string]*Connection)}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by client ID and closes the underlying network
// connection. Returns true if the connection was found and removed, false if
// it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given client ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
