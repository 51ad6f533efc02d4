package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/events"
	"github.com/localrivet/editormcp/mcp"
	"github.com/localrivet/editormcp/transport"
	"github.com/localrivet/editormcp/transport/tcp"
	"github.com/localrivet/editormcp/util"
)

// handleData splits one read into payloads and dispatches each in order.
func (s *Server) handleData(c *tcp.ClientConnection, data []byte) {
	framing := transport.DetectFraming(data)
	payloads, err := transport.ExtractPayloads(data)
	switch {
	case errors.Is(err, transport.ErrNoHeaderSeparator):
		s.logger.Warn("HTTP request without header separator", "id", c.ID(), "bytes", len(data))
		return
	case errors.Is(err, transport.ErrEmptyBody):
		s.logger.Warn("empty HTTP request body", "id", c.ID())
		return
	case err != nil:
		s.logger.Warn("failed to extract payloads", "id", c.ID(), "error", err)
		return
	}

	s.logger.Debug("received data", "id", c.ID(), "framing", framing.String(), "bytes", len(data), "payloads", len(payloads))
	for _, payload := range payloads {
		if c.Closed() {
			return
		}
		s.processCommand(c, payload)
	}
}

// ProcessCommand dispatches a single JSON payload received on c and writes
// the response, if any, back to c. Tick calls it for every extracted
// payload; hosts may call it directly to inject a command.
func (s *Server) ProcessCommand(c *tcp.ClientConnection, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processCommand(c, payload)
}

func (s *Server) processCommand(c *tcp.ClientConnection, payload string) {
	if s.cfg.VerboseLogging {
		s.logger.Debug("processing command", "id", c.ID(), "payload", s.loggable(payload))
	}

	msg, err := decodeObject(payload)
	if err != nil {
		s.logger.Warn("invalid JSON format", "id", c.ID(), "error", err, "payload", s.loggable(payload))
		publish(s, events.TopicRequestFailed, events.RequestFailedEvent{
			RequestJSON: s.loggable(payload),
			Code:        mcp.CodeParseError,
			Error:       err.Error(),
		})
		return
	}

	if version, _ := msg["jsonrpc"].(string); version == mcp.JSONRPCVersion {
		if method, ok := msg["method"].(string); ok {
			s.handleJSONRPC(c, msg, method, payload)
			return
		}
	}

	if commandType, ok := msg["type"].(string); ok {
		s.handleLegacy(c, msg, commandType, payload)
		return
	}

	s.logger.Warn("invalid request format", "id", c.ID(), "keys", strings.Join(sortedKeys(msg), ","))
}

func (s *Server) handleJSONRPC(c *tcp.ClientConnection, msg map[string]any, method, payload string) {
	id := msg["id"]

	var (
		result  any
		rpcErr  *mcp.RPCError
		tool    string
		started = time.Now()
	)

	switch method {
	case mcp.MethodInitialize:
		result = mcp.InitializeResult{
			ProtocolVersion: config.ProtocolVersion,
			ServerInfo:      mcp.ServerInfo{Name: config.ServerName, Version: config.ServerVersion},
			Capabilities:    mcp.Capabilities{Tools: true},
		}
		s.logger.Info("client initialized", "id", c.ID(), "remote", c.RemoteAddr())

	case mcp.MethodToolsList:
		list := s.toolList()
		s.logger.Info("sent tools list", "id", c.ID(), "tools", len(list.Tools))
		result = list

	case mcp.MethodToolsCall:
		tool, result, rpcErr = s.callTool(c, msg)

	default:
		s.logger.Warn("unknown JSON-RPC method", "id", c.ID(), "method", method)
		rpcErr = &mcp.RPCError{Code: mcp.CodeMethodNotFound, Message: msgMethodNotFound}
	}

	if rpcErr != nil {
		s.sendBody(c, createErrorResponse(id, rpcErr.Code, rpcErr.Message))
		publish(s, events.TopicRequestFailed, events.RequestFailedEvent{
			Method:      method,
			RequestJSON: s.loggable(payload),
			Code:        rpcErr.Code,
			Error:       rpcErr.Message,
		})
		return
	}

	resp, err := mcp.NewResponse(id, result)
	if err != nil {
		s.logger.Error("failed to encode result", "id", c.ID(), "method", method, "error", err)
		s.sendBody(c, createErrorResponse(id, mcp.CodeInternalError, "Internal error: "+err.Error()))
		return
	}
	body, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to encode response", "id", c.ID(), "method", method, "error", err)
		return
	}
	s.sendBody(c, body)

	if tool != "" {
		publish(s, events.TopicToolExecuted, events.ToolExecutedEvent{
			Method:       method,
			ToolName:     tool,
			ConnectionID: c.ID(),
			Duration:     time.Since(started),
		})
	}
}

// callTool resolves and invokes the handler named by params.name.
func (s *Server) callTool(c *tcp.ClientConnection, msg map[string]any) (string, any, *mcp.RPCError) {
	params, ok := msg["params"].(map[string]any)
	if !ok {
		return "", nil, &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: msgMissingParams}
	}
	name, ok := params["name"].(string)
	if !ok {
		return "", nil, &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: msgMissingName}
	}

	h := s.registry.Get(name)
	if h == nil {
		s.logger.Warn("tool not found", "id", c.ID(), "tool", name)
		return name, nil, &mcp.RPCError{Code: mcp.CodeMethodNotFound, Message: msgToolNotFound}
	}

	args := params
	if arguments, ok := params["arguments"].(map[string]any); ok {
		args = arguments
	}

	s.logger.Info("executing tool", "id", c.ID(), "tool", name)
	out, err := s.invoke(h, args, c)
	if err != nil {
		return name, nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: "Internal error: " + err.Error()}
	}
	if out == nil {
		return name, nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: msgNullResult}
	}

	text, err := encodeJSON(out)
	if err != nil {
		return name, nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: "Internal error: " + err.Error()}
	}
	status, _ := out["status"].(string)
	return name, mcp.ToolCallResult{
		Content: []mcp.ContentItem{{Type: "text", Text: string(text)}},
		IsError: status == "error",
	}, nil
}

func (s *Server) toolList() mcp.ToolListResult {
	names := s.registry.Names()
	tools := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		tool := mcp.Tool{
			Name:        name,
			Description: fmt.Sprintf("Execute %s command", name),
			InputSchema: map[string]any{"type": "object"},
		}
		if s.describer != nil {
			if description, schema, ok := s.describer.DescribeTool(name); ok {
				tool.Description = description
				if schema != nil {
					tool.InputSchema = schema
				}
			}
		}
		tools = append(tools, tool)
	}
	return mcp.ToolListResult{Tools: tools}
}

func (s *Server) handleLegacy(c *tcp.ClientConnection, msg map[string]any, commandType, payload string) {
	h := s.registry.Get(commandType)
	if h == nil {
		s.logger.Warn("unknown command type", "id", c.ID(), "type", commandType)
		message := "Unknown command type: " + commandType
		s.sendJSON(c, legacyError(message))
		publish(s, events.TopicRequestFailed, events.RequestFailedEvent{
			Method:      commandType,
			RequestJSON: s.loggable(payload),
			Error:       message,
		})
		return
	}

	s.logger.Info("executing command", "id", c.ID(), "type", commandType)
	started := time.Now()
	out, err := s.invoke(h, msg, c)
	if err != nil {
		s.sendJSON(c, legacyError("Internal error: "+err.Error()))
		return
	}
	if out == nil {
		s.logger.Warn("command produced no response", "id", c.ID(), "type", commandType)
		s.sendJSON(c, legacyError(msgNoResponse))
		publish(s, events.TopicRequestFailed, events.RequestFailedEvent{
			Method:      commandType,
			RequestJSON: s.loggable(payload),
			Error:       msgNoResponse,
		})
		return
	}
	s.sendJSON(c, out)

	publish(s, events.TopicToolExecuted, events.ToolExecutedEvent{
		Method:       "legacy",
		ToolName:     commandType,
		ConnectionID: c.ID(),
		Duration:     time.Since(started),
	})
}

// invoke runs h, converting a panic into an error.
func (s *Server) invoke(h CommandHandler, params map[string]any, c Connection) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command handler panicked", "command", h.CommandName(), "panic", r)
			err = fmt.Errorf("%v", r)
		}
	}()
	return h.Execute(params, c), nil
}

func (s *Server) loggable(payload string) string {
	if s.cfg.LogFullJSONMessages {
		return payload
	}
	return util.SafeLogMessage(payload, config.MaxLogMessageLength)
}

// decodeObject parses payload as a JSON object, keeping numbers as
// json.Number so ids and arguments round-trip unchanged.
func decodeObject(payload string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
