package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/localrivet/editormcp/transport"
)

// acceptRetryDelay is the pause after a transient Accept failure.
const acceptRetryDelay = 50 * time.Millisecond

// Listener binds the server socket and accepts peers on a background
// goroutine. Accepted sockets are queued until the tick drains them.
type Listener struct {
	transport.BaseTransport

	addr     string
	ln       net.Listener
	accepted chan net.Conn
	done     chan struct{}

	acceptOnce sync.Once
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

var _ transport.Transport = (*Listener)(nil)

// NewListener creates a listener for addr. queueSize bounds how many
// accepted sockets may wait between ticks.
func NewListener(addr string, queueSize int) *Listener {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Listener{
		addr:     addr,
		accepted: make(chan net.Conn, queueSize),
		done:     make(chan struct{}),
	}
}

// Start binds the address. It does not accept yet; see StartAccepting.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}
	l.ln = ln
	l.GetLogger().Info("listener bound", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// StartAccepting launches the accept goroutine. Only the first call has an
// effect.
func (l *Listener) StartAccepting() {
	if l.ln == nil {
		return
	}
	l.acceptOnce.Do(func() {
		l.wg.Add(1)
		go l.acceptLoop()
	})
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	logger := l.GetLogger()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("accept failed", "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		select {
		case l.accepted <- conn:
		case <-l.done:
			conn.Close()
			return
		}
	}
}

// Drain returns every socket accepted since the last call without blocking.
func (l *Listener) Drain() []net.Conn {
	var conns []net.Conn
	for {
		select {
		case conn := <-l.accepted:
			conns = append(conns, conn)
		default:
			return conns
		}
	}
}

// Stop closes the listening socket, waits for the accept goroutine and
// closes any sockets still queued.
func (l *Listener) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.done)
		if l.ln != nil {
			err = l.ln.Close()
		}
		l.wg.Wait()
		for _, conn := range l.Drain() {
			conn.Close()
		}
	})
	return err
}
