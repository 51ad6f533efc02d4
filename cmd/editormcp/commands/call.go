package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/localrivet/editormcp/client"
	"github.com/localrivet/editormcp/mcp"
)

var (
	callHost    string
	callHTTP    bool
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <method|tool> [json-arguments]",
	Short: "Send a JSON-RPC request to a running server",
	Long: `Send one JSON-RPC request and print the result.

The first argument is initialize, tools/list, or the name of a tool to
invoke through tools/call with the optional JSON object as arguments.`,
	Example: `  editormcp call tools/list
  editormcp call create_object '{"class_name": "PointLight"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var legacyCmd = &cobra.Command{
	Use:   "legacy <type> [json-params]",
	Short: "Send a legacy command to a running server",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLegacy,
}

func init() {
	for _, cmd := range []*cobra.Command{callCmd, legacyCmd} {
		cmd.Flags().StringVar(&callHost, "host", "127.0.0.1", "Server host")
		cmd.Flags().BoolVar(&callHTTP, "http", false, "Frame the request as HTTP POST")
		cmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "Request timeout")
	}
}

func dial(ctx context.Context) (*client.Client, error) {
	options := []client.Option{
		client.WithLogger(newLogger(loaded)),
		client.WithRequestTimeout(callTimeout),
	}
	if callHTTP {
		options = append(options, client.WithHTTPFraming())
	}
	addr := net.JoinHostPort(callHost, strconv.Itoa(loaded.Port))
	return client.Dial(ctx, addr, options...)
}

func parseObject(args []string, at int) (map[string]any, error) {
	if len(args) <= at {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(args[at]), &obj); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return obj, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	arguments, err := parseObject(args, 1)
	if err != nil {
		return err
	}

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var out any
	switch args[0] {
	case mcp.MethodInitialize:
		out, err = c.Initialize(ctx)
	case mcp.MethodToolsList:
		out, err = c.ListTools(ctx)
	default:
		out, err = c.CallTool(ctx, args[0], arguments)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runLegacy(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	params, err := parseObject(args, 1)
	if err != nil {
		return err
	}

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Legacy(ctx, args[0], params)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
