package tcp

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/editormcp/transport/tcp/tcptest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	accepted []string
	rejected []RejectReason
	evicted  []EvictReason
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnAccepted: func(c *ClientConnection, _ int) { r.accepted = append(r.accepted, c.ID()) },
		OnRejected: func(_ string, reason RejectReason) { r.rejected = append(r.rejected, reason) },
		OnEvicted:  func(_ *ClientConnection, reason EvictReason, _ int) { r.evicted = append(r.evicted, reason) },
	}
}

func newTestTable(maxClients int, rec *recorder) *Table {
	return NewTable(TableConfig{MaxClients: maxClients, ReceiveBufferSize: 4096}, quietLogger(), rec.hooks())
}

func TestAdmitUpToMaxClients(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(2, rec)

	a, b, c := tcptest.NewConn("127.0.0.1:40001"), tcptest.NewConn("127.0.0.1:40002"), tcptest.NewConn("127.0.0.1:40003")

	_, ok := table.Admit(a)
	require.True(t, ok)
	_, ok = table.Admit(b)
	require.True(t, ok)
	_, ok = table.Admit(c)
	require.False(t, ok)

	assert.Equal(t, 2, table.Len())
	assert.Len(t, rec.accepted, 2)
	assert.Equal(t, []RejectReason{RejectMaxClients}, rec.rejected)
	assert.Equal(t, 1, c.CloseCount())
	assert.Equal(t, 0, a.CloseCount())
}

func TestAdmitRejectsDuplicateSocket(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conn := tcptest.NewConn("127.0.0.1:40001")

	_, ok := table.Admit(conn)
	require.True(t, ok)
	_, ok = table.Admit(conn)
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []RejectReason{RejectDuplicate}, rec.rejected)
}

func TestAdmitLocalhostOnly(t *testing.T) {
	rec := &recorder{}
	table := NewTable(TableConfig{MaxClients: 5, ReceiveBufferSize: 1024, LocalhostOnly: true}, quietLogger(), rec.hooks())

	_, ok := table.Admit(tcptest.NewConn("10.1.2.3:5000"))
	assert.False(t, ok)
	_, ok = table.Admit(tcptest.NewConn("127.0.0.1:5000"))
	assert.True(t, ok)
	assert.Equal(t, []RejectReason{RejectRemotePeer}, rec.rejected)
}

func TestReadWouldBlockKeepsConnection(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conn := tcptest.NewConn("127.0.0.1:40001")
	c, _ := table.Admit(conn)

	assert.Nil(t, table.Read(c))
	assert.Equal(t, 1, table.Len())

	conn.Feed("{\"type\":\"ping\"}\n")
	assert.Equal(t, "{\"type\":\"ping\"}\n", string(table.Read(c)))
}

func TestReadErrorEvicts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*tcptest.Conn)
	}{
		{"eof", func(c *tcptest.Conn) { c.HangUp() }},
		{"reset", func(c *tcptest.Conn) { c.FailReads(errors.New("connection reset by peer")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			table := newTestTable(5, rec)
			conn := tcptest.NewConn("127.0.0.1:40001")
			c, _ := table.Admit(conn)
			tt.setup(conn)

			assert.Nil(t, table.Read(c))
			assert.Equal(t, 0, table.Len())
			assert.Equal(t, []EvictReason{ReasonReadError}, rec.evicted)
			assert.Equal(t, 1, conn.CloseCount())
		})
	}
}

func TestWriteErrorEvicts(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conn := tcptest.NewConn("127.0.0.1:40001")
	c, _ := table.Admit(conn)
	conn.FailWrites(errors.New("broken pipe"))

	err := table.Write(c, []byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []EvictReason{ReasonWriteError}, rec.evicted)
}

func TestSweepEvictsIdleConnectionsOnce(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conn := tcptest.NewConn("127.0.0.1:40001")
	c, _ := table.Admit(conn)

	timeout := 5 * time.Second
	assert.Equal(t, 0, table.Sweep(4*time.Second, timeout))
	// exactly at the timeout is still alive
	assert.Equal(t, 0, table.Sweep(time.Second, timeout))
	assert.Equal(t, 1, table.Sweep(time.Millisecond, timeout))

	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []EvictReason{ReasonTimeout}, rec.evicted)

	// a second eviction of the same connection is a no-op
	assert.False(t, table.Evict(c, ReasonClosed))
	table.EvictAll(ReasonShutdown)
	assert.Equal(t, 1, conn.CloseCount())
}

func TestReadResetsIdleTime(t *testing.T) {
	table := newTestTable(5, &recorder{})
	conn := tcptest.NewConn("127.0.0.1:40001")
	c, _ := table.Admit(conn)

	table.Sweep(4*time.Second, 5*time.Second)
	conn.Feed("hello\n")
	table.Read(c)
	assert.Equal(t, time.Duration(0), c.IdleTime())

	table.Sweep(2*time.Second, 5*time.Second)
	assert.Equal(t, 1, table.Len())
}

func TestSweepSparesConnectionsThatSpoke(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conn := tcptest.NewConn("127.0.0.1:40001")
	c, _ := table.Admit(conn)

	conn.Feed("hello\n")
	table.Read(c)
	require.True(t, c.Active())

	// the host stalled for longer than the timeout
	assert.Equal(t, 0, table.Sweep(time.Minute, 5*time.Second))
	assert.Equal(t, time.Duration(0), c.IdleTime())
	assert.False(t, c.Active())

	assert.Equal(t, 1, table.Sweep(time.Minute, 5*time.Second))
	assert.Equal(t, []EvictReason{ReasonTimeout}, rec.evicted)
}

func TestEvictAll(t *testing.T) {
	rec := &recorder{}
	table := newTestTable(5, rec)
	conns := []*tcptest.Conn{tcptest.NewConn("127.0.0.1:1"), tcptest.NewConn("127.0.0.1:2")}
	for _, conn := range conns {
		table.Admit(conn)
	}

	table.EvictAll(ReasonShutdown)

	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []EvictReason{ReasonShutdown, ReasonShutdown}, rec.evicted)
	for _, conn := range conns {
		assert.Equal(t, 1, conn.CloseCount())
	}
}
