package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/localrivet/editormcp/mcp"
)

// Call sends a JSON-RPC request and returns the raw result. A JSON-RPC error
// response is returned as *mcp.RPCError.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	payload, err := json.Marshal(mcp.NewRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	body, err := c.Send(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp mcp.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if got, ok := resp.ID.(float64); !ok || int64(got) != id {
		return nil, fmt.Errorf("response id %v does not match request id %d", resp.ID, id)
	}
	return resp.Result, nil
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	raw, err := c.Call(ctx, mcp.MethodInitialize, map[string]any{})
	if err != nil {
		return nil, err
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}
	return &result, nil
}

// ListTools returns the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	raw, err := c.Call(ctx, mcp.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	var result mcp.ToolListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool and returns its content array.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResult, error) {
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	raw, err := c.Call(ctx, mcp.MethodToolsCall, params)
	if err != nil {
		return nil, err
	}
	var result mcp.ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}
	return &result, nil
}

// CallToolJSON invokes a tool and decodes the JSON text of its first
// content item into out.
func (c *Client) CallToolJSON(ctx context.Context, name string, args map[string]any, out any) error {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return err
	}
	if len(result.Content) == 0 {
		return fmt.Errorf("tool %s returned no content", name)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), out); err != nil {
		return fmt.Errorf("decode tool %s content: %w", name, err)
	}
	return nil
}

// Legacy sends a typed command. Fields of params are merged at the top level
// next to "type".
func (c *Client) Legacy(ctx context.Context, commandType string, params map[string]any) (map[string]any, error) {
	msg := make(map[string]any, len(params)+1)
	for k, v := range params {
		msg[k] = v
	}
	msg["type"] = commandType

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s command: %w", commandType, err)
	}
	body, err := c.Send(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", commandType, err)
	}
	return resp, nil
}
