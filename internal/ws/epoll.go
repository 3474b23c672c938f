//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Epoll wraps Linux epoll syscalls for WebSocket I/O multiplexing. Instead
// of a read goroutine per connection, file descriptors are registered with
// the kernel and workers are dispatched only when data is ready.
type Epoll struct {
	fd          int                 // epoll file descriptor
	connections map[int]*Connection // socket fd -> connection
	mu          sync.RWMutex        // protects connections map
	events      []unix.EpollEvent   // reusable event buffer for Wait
}

// NewEpoll creates a new epoll instance using epoll_create1.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		fd:          fd,
		connections: make(map[int]*Connection),
		events:      make([]unix.EpollEvent, 128),
	}, nil
}

// Add registers a connection with epoll for read readiness notifications
// (EPOLLIN and EPOLLHUP).
func (e *Epoll) Add(c *Connection) error {
	fd := socketFD(c.Conn)
	if err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLHUP,
		Fd:     int32(fd),
	}); err != nil {
		return err
	}

	e.mu.Lock()
	e.connections[fd] = c
	e.mu.Unlock()
	return nil
}

// Remove unregisters a connection from epoll.
func (e *Epoll) Remove(c *Connection) error {
	fd := socketFD(c.Conn)
	if err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.connections, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until one or more registered connections are ready for
// reading. Connections removed between epoll_wait returning and the lookup
// are silently skipped.
func (e *Epoll) Wait() ([]*Connection, error) {
	n, err := unix.EpollWait(e.fd, e.events, -1)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	conns := make([]*Connection, 0, n)
	for i := 0; i < n; i++ {
		if c, ok := e.connections[int(e.events[i].Fd)]; ok {
			conns = append(conns, c)
		}
	}
	e.mu.RUnlock()
	return conns, nil
}

// Done marks a dispatched connection as processed. Level-triggered epoll
// needs no handshake, so this is a no-op; the fallback poller relies on it.
func (e *Epoll) Done(c *Connection) {}

// Close closes the epoll file descriptor.
func (e *Epoll) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connections = nil
	return unix.Close(e.fd)
}

// socketFD extracts the file descriptor from a net.Conn using the
// SyscallConn interface. This avoids duplicating the file descriptor (which
// File() does), keeping the original fd valid for epoll registration.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	var fd int
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
