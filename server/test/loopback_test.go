package test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/editormcp/client"
	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/events"
	"github.com/localrivet/editormcp/handlers"
	"github.com/localrivet/editormcp/mcp"
	"github.com/localrivet/editormcp/scene"
	"github.com/localrivet/editormcp/server"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startServer runs a server with the built-in commands on a real ticker.
func startServer(t *testing.T, mutate func(*config.ServerConfig), options ...server.Option) (*server.Server, *scene.Memory) {
	t.Helper()
	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.LocalhostOnly = true
	cfg.TickInterval = config.MinTickInterval
	if mutate != nil {
		mutate(&cfg)
	}

	opts := append([]server.Option{
		server.WithLogger(quietLogger()),
		server.WithToolDescriber(handlers.Describer{}),
	}, options...)
	srv, err := server.NewServer(cfg, opts...)
	require.NoError(t, err)

	sc := scene.NewMemory(scene.WithLevelName("Loopback"))
	handlers.Register(srv, sc)

	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv, sc
}

func dial(t *testing.T, srv *server.Server, options ...client.Option) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := append([]client.Option{client.WithLogger(quietLogger()), client.WithRequestTimeout(5 * time.Second)}, options...)
	c, err := client.Dial(ctx, srv.Addr().String(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLoopbackSession(t *testing.T) {
	for _, framing := range []struct {
		name    string
		options []client.Option
	}{
		{"raw", nil},
		{"http", []client.Option{client.WithHTTPFraming()}},
	} {
		t.Run(framing.name, func(t *testing.T) {
			srv, sc := startServer(t, nil)
			c := dial(t, srv, framing.options...)
			ctx := context.Background()

			info, err := c.Initialize(ctx)
			require.NoError(t, err)
			assert.Equal(t, config.ProtocolVersion, info.ProtocolVersion)
			assert.Equal(t, config.ServerName, info.ServerInfo.Name)

			tools, err := c.ListTools(ctx)
			require.NoError(t, err)
			require.Len(t, tools, len(srv.Handlers()))
			for _, tool := range tools {
				if tool.Name == handlers.CommandCreateObject {
					assert.Contains(t, tool.Description, "class_name")
					assert.Equal(t, []any{"class_name"}, tool.InputSchema["required"])
				}
			}

			var created struct {
				Status string `json:"status"`
				Result struct {
					ActorName  string `json:"actor_name"`
					ActorClass string `json:"actor_class"`
				} `json:"result"`
			}
			err = c.CallToolJSON(ctx, handlers.CommandCreateObject, map[string]any{
				"class_name": "PointLight",
				"location":   map[string]any{"x": 100, "y": 0, "z": 250},
			}, &created)
			require.NoError(t, err)
			assert.Equal(t, "success", created.Status)
			assert.Equal(t, "PointLight_0", created.Result.ActorName)

			a, err := sc.Find("PointLight_0")
			require.NoError(t, err)
			assert.Equal(t, 250.0, a.Location.Z)

			resp, err := c.Legacy(ctx, handlers.CommandGetSceneInfo, nil)
			require.NoError(t, err)
			assert.Equal(t, "success", resp["status"])
			result := resp["result"].(map[string]any)
			assert.Equal(t, "Loopback", result["level"])
			assert.Equal(t, 1.0, result["actor_count"])

			assert.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestLoopbackErrors(t *testing.T) {
	srv, _ := startServer(t, nil)
	c := dial(t, srv)
	ctx := context.Background()

	_, err := c.Call(ctx, "resources/list", nil)
	var rpcErr *mcp.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, mcp.CodeMethodNotFound, rpcErr.Code)

	_, err = c.CallTool(ctx, "no_such_tool", nil)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, mcp.CodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "Tool not found", rpcErr.Message)

	result, err := c.CallTool(ctx, handlers.CommandDeleteObject, map[string]any{"actor_name": "Ghost"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Actor not found: Ghost")

	resp, err := c.Legacy(ctx, "teleport", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "error", "message": "Unknown command type: teleport"}, resp)
}

func TestLoopbackMaxClients(t *testing.T) {
	bus := events.NewBus(quietLogger())
	t.Cleanup(func() { bus.Close() })

	rejected := make(chan events.ConnectionRejectedEvent, 4)
	_, err := events.Subscribe(bus, events.TopicConnectionRejected, func(_ context.Context, evt events.ConnectionRejectedEvent) error {
		rejected <- evt
		return nil
	})
	require.NoError(t, err)

	srv, _ := startServer(t, func(cfg *config.ServerConfig) { cfg.MaxConcurrentClients = 1 }, server.WithEvents(bus))

	first := dial(t, srv)
	_, err = first.Legacy(context.Background(), handlers.CommandPing, nil)
	require.NoError(t, err)

	second := dial(t, srv, client.WithRequestTimeout(500*time.Millisecond))
	select {
	case evt := <-rejected:
		assert.Equal(t, "max_clients", evt.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("second connection was not rejected")
	}

	_, err = second.Legacy(context.Background(), handlers.CommandPing, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, srv.ConnectionCount())
}

func TestLoopbackStopClosesClients(t *testing.T) {
	srv, _ := startServer(t, nil)
	c := dial(t, srv)

	_, err := c.Legacy(context.Background(), handlers.CommandPing, nil)
	require.NoError(t, err)

	srv.Stop()
	assert.False(t, srv.IsRunning())
	assert.Equal(t, 0, srv.ConnectionCount())

	_, err = c.Legacy(context.Background(), handlers.CommandPing, nil)
	assert.Error(t, err)
}
