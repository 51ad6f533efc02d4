// Package stdio bridges a standard I/O MCP client to a TCP command server.
//
// MCP hosts that only launch stdio servers run the bridge as a subprocess.
// Each newline-delimited JSON-RPC request read from stdin is forwarded to
// the server and its response is written to stdout on one line.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/localrivet/editormcp/mcp"
	"github.com/localrivet/editormcp/transport"
	"github.com/localrivet/editormcp/util"
)

// DefaultRequestTimeout bounds one forwarded request.
const DefaultRequestTimeout = 30 * time.Second

const maxLoggedLine = 100

// Sender forwards one JSON payload and returns the response body.
// *client.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, payload []byte) ([]byte, error)
}

// Bridge implements transport.Transport over standard I/O.
type Bridge struct {
	transport.BaseTransport
	reader  *bufio.Reader
	writer  *bufio.Writer
	sender  Sender
	timeout time.Duration

	writeMu  sync.Mutex
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	err      error
}

// NewBridge creates a bridge over os.Stdin and os.Stdout.
func NewBridge(sender Sender) *Bridge {
	return NewBridgeWithIO(os.Stdin, os.Stdout, sender)
}

// NewBridgeWithIO creates a bridge with custom streams.
func NewBridgeWithIO(in io.Reader, out io.Writer, sender Sender) *Bridge {
	return &Bridge{
		reader:   bufio.NewReader(in),
		writer:   bufio.NewWriter(out),
		sender:   sender,
		timeout:  DefaultRequestTimeout,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// SetRequestTimeout changes the per-request timeout.
func (b *Bridge) SetRequestTimeout(d time.Duration) {
	b.timeout = d
}

// Start begins reading requests.
func (b *Bridge) Start() error {
	go b.readLoop()
	return nil
}

// Stop makes the read loop exit after the current line.
func (b *Bridge) Stop() error {
	b.stopOnce.Do(func() { close(b.done) })
	return nil
}

// Done is closed when the read loop exits, on end of input or Stop.
func (b *Bridge) Done() <-chan struct{} {
	return b.finished
}

// Err returns the input error that ended the read loop, if any. It is only
// meaningful after Done is closed.
func (b *Bridge) Err() error {
	return b.err
}

func (b *Bridge) readLoop() {
	defer close(b.finished)
	logger := b.GetLogger()

	for {
		select {
		case <-b.done:
			return
		default:
		}

		line, err := b.reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			b.handleLine(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.err = err
				logger.Error("stdio read failed", "error", err)
			} else {
				logger.Debug("stdio input closed")
			}
			return
		}
	}
}

func (b *Bridge) handleLine(line string) {
	logger := b.GetLogger()

	msg, ok := parseJSONRPC([]byte(line))
	if !ok {
		// hosts sometimes leak log lines onto the pipe
		logger.Debug("filtered non-JSON-RPC input", "line", util.SafeLogMessage(line, maxLoggedLine))
		return
	}
	id, hasID := msg["id"]
	if !hasID {
		// the server answers everything it receives, so notifications stay here
		logger.Debug("dropped notification", "method", msg["method"])
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	body, err := b.sender.Send(ctx, []byte(line))
	if err != nil {
		logger.Warn("request forwarding failed", "method", msg["method"], "error", err)
		body, err = mcp.NewErrorResponse(id, mcp.CodeInternalError, "Bridge error: "+err.Error()).Marshal()
		if err != nil {
			logger.Error("failed to encode bridge error", "error", err)
			return
		}
	}
	if err := b.write(body); err != nil {
		logger.Error("stdout write failed", "error", err)
	}
}

func (b *Bridge) write(body []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if _, err := b.writer.Write(bytes.TrimRight(body, "\r\n")); err != nil {
		return err
	}
	if err := b.writer.WriteByte('\n'); err != nil {
		return err
	}
	return b.writer.Flush()
}

// parseJSONRPC accepts requests only: a JSON object with jsonrpc "2.0" and
// a string method. Numbers are kept as json.Number so ids round-trip.
func parseJSONRPC(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg map[string]any
	if err := dec.Decode(&msg); err != nil || dec.More() {
		return nil, false
	}
	if v, _ := msg["jsonrpc"].(string); v != mcp.JSONRPCVersion {
		return nil, false
	}
	if _, ok := msg["method"].(string); !ok {
		return nil, false
	}
	return msg, true
}

var _ transport.Transport = (*Bridge)(nil)
