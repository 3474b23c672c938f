//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll provides a readiness poller for non-Linux platforms, letting
// developers run the server on macOS or Windows. Each connection gets a
// monitor goroutine that blocks on a one-byte read; the byte is replayed to
// the frame reader through a wrapper, and the monitor pauses until the
// worker reports the frame consumed, so it never races the frame read.
type Epoll struct {
	mu      sync.Mutex
	conns   map[*Connection]struct{}
	readyCh chan *Connection // connections with pending data
	done    chan struct{}
}

// NewEpoll creates a fallback poller that uses goroutines to monitor each
// connection for incoming data.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns:   make(map[*Connection]struct{}),
		readyCh: make(chan *Connection, 128),
		done:    make(chan struct{}),
	}, nil
}

// Add registers a connection. Its socket is wrapped so that bytes consumed
// by the readiness probe are replayed to subsequent reads, then a monitor
// goroutine is started.
func (e *Epoll) Add(c *Connection) error {
	mc := &monitoredConn{Conn: c.Conn, handled: make(chan struct{}, 1)}
	c.Conn = mc

	e.mu.Lock()
	e.conns[c] = struct{}{}
	e.mu.Unlock()

	go e.monitor(mc, c)
	return nil
}

// monitor blocks reading a single byte from the real socket to detect
// pending data, pushes the byte back for replay, signals readiness, and
// waits for the worker to finish the frame before probing again. On read
// error it signals readiness once so the server's read path observes the
// closure.
func (e *Epoll) monitor(mc *monitoredConn, c *Connection) {
	one := make([]byte, 1)
	for {
		n, err := mc.Conn.Read(one)
		if n == 1 {
			mc.push(one[0])
		}
		if err != nil {
			select {
			case e.readyCh <- c:
			case <-e.done:
			}
			return
		}

		select {
		case e.readyCh <- c:
		case <-e.done:
			return
		}

		select {
		case <-mc.handled:
		case <-e.done:
			return
		}
	}
}

// Remove unregisters a connection from the poller. The monitor goroutine
// exits on its own when the closed socket errors its probe read.
func (e *Epoll) Remove(c *Connection) error {
	e.mu.Lock()
	delete(e.conns, c)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one connection is ready for reading, then
// collects all currently ready connections without blocking.
func (e *Epoll) Wait() ([]*Connection, error) {
	var first *Connection
	select {
	case first = <-e.readyCh:
	case <-e.done:
		return nil, net.ErrClosed
	}

	conns := []*Connection{first}
	for {
		select {
		case c := <-e.readyCh:
			conns = append(conns, c)
		default:
			return conns, nil
		}
	}
}

// Done tells the connection's monitor that the dispatched frame has been
// consumed, resuming the readiness probe.
func (e *Epoll) Done(c *Connection) {
	if mc, ok := c.Conn.(*monitoredConn); ok {
		select {
		case mc.handled <- struct{}{}:
		default:
		}
	}
}

// Close shuts down the poller and releases all monitor goroutines.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// monitoredConn wraps a net.Conn so that bytes consumed by the readiness
// probe are replayed to the next Read.
type monitoredConn struct {
	net.Conn
	mu      sync.Mutex
	pending []byte
	handled chan struct{}
}

// Read returns replayed probe bytes before reading from the socket.
func (m *monitoredConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(b, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()
	return m.Conn.Read(b)
}

func (m *monitoredConn) push(b byte) {
	m.mu.Lock()
	m.pending = append(m.pending, b)
	m.mu.Unlock()
}
