package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/localrivet/editormcp/transport"
	"github.com/localrivet/editormcp/transport/tcp"
)

// ErrUnknownConnection is returned by SendResponse for connections the
// server did not create.
var ErrUnknownConnection = errors.New("connection does not belong to this server")

// SendResponse encodes response as JSON and writes it to conn as an HTTP
// response. Handlers may use it to push extra messages; it must only be
// called from within a handler or Tick.
func (s *Server) SendResponse(conn Connection, response map[string]any) error {
	c, ok := conn.(*tcp.ClientConnection)
	if !ok {
		return ErrUnknownConnection
	}
	body, err := encodeJSON(response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return s.sendBody(c, body)
}

// sendJSON writes response to c. A response that cannot be encoded is
// replaced by a legacy error envelope so the peer always gets an answer.
func (s *Server) sendJSON(c *tcp.ClientConnection, response map[string]any) {
	body, err := encodeJSON(response)
	if err != nil {
		s.logger.Error("failed to encode response", "id", c.ID(), "error", err)
		body = createLegacyError("Internal error: " + err.Error())
	}
	s.sendBody(c, body)
}

// sendBody writes body with a single write. A failed write evicts c.
func (s *Server) sendBody(c *tcp.ClientConnection, body []byte) error {
	wrapped := transport.WrapHTTPResponse(body)

	var err error
	if s.table != nil {
		err = s.table.Write(c, wrapped)
	} else {
		err = c.Write(wrapped)
	}
	if err != nil {
		return err
	}

	if s.cfg.VerboseLogging {
		s.logger.Debug("sent response", "id", c.ID(), "bytes", len(wrapped), "body", s.loggable(string(body)))
	}
	return nil
}

// encodeJSON marshals v without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
