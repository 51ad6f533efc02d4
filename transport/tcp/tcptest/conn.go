// Package tcptest provides an in-memory net.Conn for driving the server tick
// deterministically in tests.
package tcptest

import (
	"bytes"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Conn is a scripted net.Conn. Data queued with Feed is returned by Read;
// when nothing is queued Read reports a deadline timeout, like a polled
// socket with no pending bytes.
type Conn struct {
	mu       sync.Mutex
	in       bytes.Buffer
	out      bytes.Buffer
	writes   [][]byte
	closes   int
	eof      bool
	readErr  error
	writeErr error
	remote   net.Addr
}

// NewConn creates a connection whose peer is remote (host:port).
func NewConn(remote string) *Conn {
	addr, err := net.ResolveTCPAddr("tcp", remote)
	if err != nil {
		addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
	}
	return &Conn{remote: addr}
}

// Feed queues data for the next Read.
func (c *Conn) Feed(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in.WriteString(data)
}

// HangUp makes Read return io.EOF once the queue is empty.
func (c *Conn) HangUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// FailReads makes Read return err once the queue is empty.
func (c *Conn) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailWrites makes every Write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Writes returns each Write call's bytes in order.
func (c *Conn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Output returns everything written so far.
func (c *Conn) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// CloseCount returns how many times Close was called.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closes > 0 {
		return 0, net.ErrClosed
	}
	if c.in.Len() > 0 {
		return c.in.Read(p)
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, os.ErrDeadlineExceeded
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closes > 0 {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.out.Write(p)
	return len(p), nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 13377}
}

func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) SetDeadline(time.Time) error      { return nil }
func (c *Conn) SetReadDeadline(time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }
