// Package client is a TCP client for the editor command server. It speaks
// both framings the server accepts (newline-delimited JSON or HTTP POST)
// and both protocols (JSON-RPC 2.0 MCP methods and legacy typed commands).
//
// # Basic Usage
//
//	c, err := client.Dial(ctx, "127.0.0.1:13377", client.WithHTTPFraming())
//	if err != nil {
//		log.Fatalf("Failed to connect: %v", err)
//	}
//	defer c.Close()
//
//	result, err := c.CallTool(ctx, "create_object", map[string]any{
//		"class_name": "StaticMeshActor",
//		"location":   map[string]any{"x": 0, "y": 0, "z": 100},
//	})
//
// A Client sends one request at a time; concurrent calls are serialized.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/localrivet/editormcp/transport"
)

// ErrNotConnected is returned by calls on a closed client.
var ErrNotConnected = errors.New("client not connected")

const (
	// DefaultRequestTimeout bounds a request when the context has no deadline.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultConnectTimeout bounds each dial attempt.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultRetryWindow is how long Dial keeps retrying a refused connection.
	DefaultRetryWindow = 10 * time.Second
)

// Client is a connection to a command server.
type Client struct {
	addr           string
	logger         *slog.Logger
	framing        transport.Framing
	path           string
	requestTimeout time.Duration
	connectTimeout time.Duration
	retryWindow    time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPFraming sends each request as an HTTP POST instead of a raw line.
func WithHTTPFraming() Option {
	return func(c *Client) {
		c.framing = transport.FramingHTTP
	}
}

// WithRequestTimeout sets the per-request timeout used when the context
// carries no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithConnectTimeout sets the timeout of each dial attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithRetryWindow sets how long Dial retries. Zero disables retries.
func WithRetryWindow(d time.Duration) Option {
	return func(c *Client) {
		c.retryWindow = d
	}
}

// Dial connects to the server at addr, retrying with exponential backoff
// while the server is not yet listening.
func Dial(ctx context.Context, addr string, options ...Option) (*Client, error) {
	c := &Client{
		addr:           addr,
		framing:        transport.FramingRaw,
		path:           "/",
		requestTimeout: DefaultRequestTimeout,
		connectTimeout: DefaultConnectTimeout,
		retryWindow:    DefaultRetryWindow,
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}
	var conn net.Conn
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			c.logger.Debug("dial failed", "address", addr, "attempt", attempt, "error", err)
		}
		return err
	}

	if c.retryWindow <= 0 {
		if err := operation(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, err)
		}
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = c.retryWindow
		if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
			return nil, fmt.Errorf("connect to %s after %d attempts: %w", addr, attempt, err)
		}
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.logger.Debug("connected", "address", addr, "framing", c.framing.String())
	return c, nil
}

// Close closes the connection. Calling Close twice is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// LocalAddr returns the client side of the connection, or nil once closed.
func (c *Client) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

// Send writes one JSON payload and returns the body of the server's HTTP
// response. Commands whose handler produces no result never get a response;
// Send then fails when the context or request timeout expires.
func (c *Client) Send(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.requestTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.conn.Write(c.frame(payload)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	resp, err := http.ReadResponse(c.reader, nil)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *Client) frame(payload []byte) []byte {
	if c.framing == transport.FramingHTTP {
		return transport.WrapHTTPRequest(c.addr, c.path, payload)
	}
	framed := make([]byte, 0, len(payload)+1)
	framed = append(framed, payload...)
	return append(framed, '\n')
}
