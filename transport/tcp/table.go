package tcp

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// EvictReason says why a connection left the table.
type EvictReason string

const (
	ReasonTimeout    EvictReason = "timeout"
	ReasonReadError  EvictReason = "read_error"
	ReasonWriteError EvictReason = "write_error"
	ReasonShutdown   EvictReason = "shutdown"
	ReasonClosed     EvictReason = "closed"
)

// RejectReason says why an accepted socket was refused.
type RejectReason string

const (
	RejectMaxClients RejectReason = "max_clients"
	RejectRemotePeer RejectReason = "remote_peer"
	RejectDuplicate  RejectReason = "duplicate_socket"
)

// Hooks are invoked synchronously from table operations. Any may be nil.
type Hooks struct {
	OnAccepted func(c *ClientConnection, clients int)
	OnRejected func(remote string, reason RejectReason)
	OnEvicted  func(c *ClientConnection, reason EvictReason, clients int)
}

// TableConfig sizes the table and its connections.
type TableConfig struct {
	MaxClients        int
	ReceiveBufferSize int
	SendBufferSize    int
	LocalhostOnly     bool
	PollWindow        time.Duration
}

// Table is the set of live connections. It is not safe for concurrent use;
// the server mutates it only from Tick and Stop.
type Table struct {
	cfg    TableConfig
	logger *slog.Logger
	hooks  Hooks
	conns  []*ClientConnection
}

// NewTable creates an empty table.
func NewTable(cfg TableConfig, logger *slog.Logger, hooks Hooks) *Table {
	if cfg.PollWindow <= 0 {
		cfg.PollWindow = DefaultPollWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{cfg: cfg, logger: logger, hooks: hooks}
}

// Len returns the number of live connections.
func (t *Table) Len() int { return len(t.conns) }

// Connections returns a snapshot of the live connections in accept order.
func (t *Table) Connections() []*ClientConnection {
	out := make([]*ClientConnection, len(t.conns))
	copy(out, t.conns)
	return out
}

// Admit adds conn to the table, or closes it when the table is full, the
// peer is remote under LocalhostOnly, or the socket is already present.
func (t *Table) Admit(conn net.Conn) (*ClientConnection, bool) {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	if reason, ok := t.admissible(conn, remote); !ok {
		conn.Close()
		t.logger.Warn("connection rejected", "remote", remote, "reason", string(reason), "clients", len(t.conns))
		if t.hooks.OnRejected != nil {
			t.hooks.OnRejected(remote, reason)
		}
		return nil, false
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetReadBuffer(t.cfg.ReceiveBufferSize)
		if t.cfg.SendBufferSize > 0 {
			_ = tc.SetWriteBuffer(t.cfg.SendBufferSize)
		}
	}

	c := NewClientConnection(conn, t.cfg.ReceiveBufferSize)
	t.conns = append(t.conns, c)

	t.logger.Info("client connected", "id", c.ID(), "remote", remote, "clients", len(t.conns))
	if t.hooks.OnAccepted != nil {
		t.hooks.OnAccepted(c, len(t.conns))
	}
	return c, true
}

func (t *Table) admissible(conn net.Conn, remote string) (RejectReason, bool) {
	for _, c := range t.conns {
		if c.conn == conn {
			return RejectDuplicate, false
		}
	}
	if t.cfg.LocalhostOnly && !IsLoopback(remote) {
		return RejectRemotePeer, false
	}
	if len(t.conns) >= t.cfg.MaxClients {
		return RejectMaxClients, false
	}
	return "", true
}

// Read polls c once. It returns the received bytes, or nil when nothing was
// pending. A read failure other than a poll timeout evicts c.
func (t *Table) Read(c *ClientConnection) []byte {
	data, err := c.Poll(t.cfg.PollWindow)
	if err != nil {
		t.logger.Info("client read failed", "id", c.ID(), "remote", c.RemoteAddr(), "error", err)
		t.Evict(c, ReasonReadError)
		return nil
	}
	return data
}

// Write sends data to c, evicting it on failure.
func (t *Table) Write(c *ClientConnection, data []byte) error {
	if err := c.Write(data); err != nil {
		t.logger.Warn("client write failed", "id", c.ID(), "remote", c.RemoteAddr(), "error", err)
		t.Evict(c, ReasonWriteError)
		return err
	}
	return nil
}

// Evict closes c and removes it. Evicting a connection that is no longer
// in the table does nothing.
func (t *Table) Evict(c *ClientConnection, reason EvictReason) bool {
	idx := -1
	for i, cur := range t.conns {
		if cur == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	t.conns = append(t.conns[:idx], t.conns[idx+1:]...)
	c.Close()

	level := slog.LevelInfo
	if reason == ReasonTimeout {
		level = slog.LevelWarn
	}
	t.logger.Log(context.Background(), level, "client disconnected",
		"id", c.ID(), "remote", c.RemoteAddr(), "reason", string(reason), "clients", len(t.conns))

	if t.hooks.OnEvicted != nil {
		t.hooks.OnEvicted(c, reason, len(t.conns))
	}
	return true
}

// Sweep ages every connection by delta and evicts those idle for longer
// than timeout. Connections that received data since the previous sweep
// are neither aged nor evicted, however large delta is. It returns the
// number evicted.
func (t *Table) Sweep(delta, timeout time.Duration) int {
	var expired []*ClientConnection
	for _, c := range t.conns {
		if c.active {
			c.active = false
			continue
		}
		c.Age(delta)
		if c.IdleTime() > timeout {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		t.Evict(c, ReasonTimeout)
	}
	return len(expired)
}

// EvictAll closes and removes every connection.
func (t *Table) EvictAll(reason EvictReason) {
	for _, c := range t.Connections() {
		t.Evict(c, reason)
	}
}
