// Package tcp implements the server side of the TCP transport: the per-client
// connection state, the table of live connections and the listener that feeds
// it. Everything here is driven by the server tick; only the accept loop runs
// on its own goroutine.
package tcp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultPollWindow is how long a read waits for data before reporting
	// that the socket would block, for connections that cannot be read
	// without waiting.
	DefaultPollWindow = time.Millisecond

	// DefaultWriteTimeout bounds a single synchronous response write.
	DefaultWriteTimeout = 5 * time.Second
)

// ClientConnection is one accepted peer. The socket is owned exclusively by
// the connection until Close.
type ClientConnection struct {
	id     string
	conn   net.Conn
	remote string
	buf    []byte
	idle   time.Duration
	active bool

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewClientConnection wraps conn with a receive buffer of bufferSize bytes.
func NewClientConnection(conn net.Conn, bufferSize int) *ClientConnection {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &ClientConnection{
		id:     ulid.Make().String(),
		conn:   conn,
		remote: remote,
		buf:    make([]byte, bufferSize),
	}
}

// ID returns the connection's unique identifier.
func (c *ClientConnection) ID() string { return c.id }

// RemoteAddr returns the peer endpoint as host:port.
func (c *ClientConnection) RemoteAddr() string { return c.remote }

// IdleTime returns the time since the last successful read.
func (c *ClientConnection) IdleTime() time.Duration { return c.idle }

// Age adds delta to the idle time.
func (c *ClientConnection) Age(delta time.Duration) { c.idle += delta }

// ResetIdle marks the connection as active now.
func (c *ClientConnection) ResetIdle() {
	c.idle = 0
	c.active = true
}

// Active reports whether the connection received data since the last sweep.
func (c *ClientConnection) Active() bool { return c.active }

// Closed reports whether Close has been called.
func (c *ClientConnection) Closed() bool { return c.closed }

// Poll performs one receive of at most the buffer size. Sockets that expose
// their descriptor are read without waiting; other connections wait no
// longer than window. It returns (nil, nil) when no data is pending. A
// successful read resets the idle time. The returned slice is a copy.
func (c *ClientConnection) Poll(window time.Duration) ([]byte, error) {
	if c.closed {
		return nil, net.ErrClosed
	}

	n, err := c.receive(window)
	if n > 0 {
		c.ResetIdle()
		data := make([]byte, n)
		copy(data, c.buf[:n])
		return data, nil
	}
	if err != nil {
		if WouldBlock(err) {
			return nil, nil
		}
		return nil, err
	}
	return nil, nil
}

func (c *ClientConnection) receive(window time.Duration) (int, error) {
	if n, ok, err := readNow(c.conn, c.buf); ok {
		return n, err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	return c.conn.Read(c.buf)
}

// Write sends data with a single synchronous write.
func (c *ClientConnection) Write(data []byte) error {
	if c.closed {
		return net.ErrClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	return nil
}

// Close releases the socket. Only the first call closes it.
func (c *ClientConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// WouldBlock reports whether err is a poll timeout rather than a failure.
func WouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsLoopback reports whether addr (host:port) is a loopback address.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
