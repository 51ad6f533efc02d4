package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/editormcp/events"
)

type describer map[string]string

func (d describer) DescribeTool(name string) (string, map[string]any, bool) {
	desc, ok := d[name]
	if !ok {
		return "", nil, false
	}
	return desc, map[string]any{
		"type":     "object",
		"required": []string{"actor_name"},
	}, true
}

func dispatch(t *testing.T, srv *Server, payload string) []string {
	t.Helper()
	conn, c := attach(t, srv)
	srv.ProcessCommand(c, payload)
	return bodies(t, conn)
}

func TestInitialize(t *testing.T) {
	srv, _ := startTestServer(t)

	got := dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{
		"jsonrpc":"2.0","id":1,
		"result":{
			"protocolVersion":"2025-11-13",
			"serverInfo":{"name":"editormcp","version":"1.0.0"},
			"capabilities":{"tools":true}
		}
	}`, got[0])
}

func TestToolsListUsesDescriber(t *testing.T) {
	srv, _ := startTestServer(t, WithToolDescriber(describer{"delete_object": "Delete an actor."}))
	srv.RegisterExternalCommandHandler(&staticHandler{name: "delete_object"})
	srv.RegisterExternalCommandHandler(&staticHandler{name: "custom"})

	got := dispatch(t, srv, `{"jsonrpc":"2.0","id":"l","method":"tools/list"}`)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"l","result":{"tools":[
		{"name":"custom","description":"Execute custom command","inputSchema":{"type":"object"}},
		{"name":"delete_object","description":"Delete an actor.","inputSchema":{"type":"object","required":["actor_name"]}}
	]}}`, got[0])
}

func TestToolsCallErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			"missing params",
			`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`,
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Missing 'params' object"}}`,
		},
		{
			"missing name",
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"arguments":{}}}`,
			`{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"Missing 'name' parameter"}}`,
		},
		{
			"null result",
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nothing"}}`,
			`{"jsonrpc":"2.0","id":3,"error":{"code":-32603,"message":"Internal error: Tool returned null result"}}`,
		},
		{
			"panicking handler",
			`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"boom"}}`,
			`{"jsonrpc":"2.0","id":4,"error":{"code":-32603,"message":"Internal error: kaboom"}}`,
		},
		{
			"unknown method",
			`{"jsonrpc":"2.0","id":5,"method":"resources/list"}`,
			`{"jsonrpc":"2.0","id":5,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			"notification without id",
			`{"jsonrpc":"2.0","method":"prompts/list"}`,
			`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := startTestServer(t)
			srv.RegisterExternalCommandHandler(&staticHandler{name: "nothing"})
			srv.RegisterExternalCommandHandler(NewHandler("boom", func(map[string]any, Connection) map[string]any {
				panic("kaboom")
			}))

			got := dispatch(t, srv, tt.payload)
			require.Len(t, got, 1)
			assert.JSONEq(t, tt.want, got[0])
		})
	}
}

func TestToolsCallArguments(t *testing.T) {
	srv, _ := startTestServer(t)
	h := &staticHandler{name: "create_object", result: map[string]any{"status": "success"}}
	srv.RegisterExternalCommandHandler(h)

	dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"create_object","arguments":{"class_name":"Cube","location":{"x":1.5}}}}`)
	assert.Equal(t, "Cube", h.last["class_name"])
	assert.Equal(t, json.Number("1.5"), h.last["location"].(map[string]any)["x"])

	// without an arguments object the whole params object is passed
	dispatch(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"create_object","class_name":"Sphere"}}`)
	assert.Equal(t, "Sphere", h.last["class_name"])
	assert.Equal(t, "create_object", h.last["name"])
}

func TestToolsCallMarksErrorEnvelope(t *testing.T) {
	srv, _ := startTestServer(t)
	srv.RegisterExternalCommandHandler(&staticHandler{name: "delete_object", result: map[string]any{"status": "error", "message": "Actor not found: X"}})

	got := dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_object","arguments":{"actor_name":"X"}}}`)
	require.Len(t, got, 1)

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[0]), &resp))
	assert.True(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.JSONEq(t, `{"status":"error","message":"Actor not found: X"}`, resp.Result.Content[0].Text)
}

func TestLegacyDispatch(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		srv, _ := startTestServer(t)
		got := dispatch(t, srv, `{"type":"fly"}`)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"status":"error","message":"Unknown command type: fly"}`, got[0])
	})

	t.Run("handler sees whole message", func(t *testing.T) {
		srv, _ := startTestServer(t)
		h := &staticHandler{name: "select_actor", result: map[string]any{"status": "success"}}
		srv.RegisterExternalCommandHandler(h)

		dispatch(t, srv, `{"type":"select_actor","actor_name":"Cube_1"}`)
		assert.Equal(t, "select_actor", h.last["type"])
		assert.Equal(t, "Cube_1", h.last["actor_name"])
	})

	t.Run("nil result", func(t *testing.T) {
		srv, _ := startTestServer(t)
		h := &staticHandler{name: "quiet"}
		srv.RegisterExternalCommandHandler(h)

		got := dispatch(t, srv, `{"type":"quiet"}`)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"status":"error","message":"Command returned no response"}`, got[0])
		assert.Equal(t, 1, h.calls)
	})

	t.Run("unencodable result", func(t *testing.T) {
		srv, _ := startTestServer(t)
		srv.RegisterExternalCommandHandler(&staticHandler{
			name:   "leaky",
			result: map[string]any{"status": "success", "ch": make(chan int)},
		})

		got := dispatch(t, srv, `{"type":"leaky"}`)
		require.Len(t, got, 1)

		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(got[0]), &resp))
		assert.Equal(t, "error", resp["status"])
		assert.Contains(t, resp["message"], "Internal error: json: unsupported type")
	})

	t.Run("panic", func(t *testing.T) {
		srv, _ := startTestServer(t)
		srv.RegisterExternalCommandHandler(NewHandler("boom", func(map[string]any, Connection) map[string]any {
			panic("kaboom")
		}))
		got := dispatch(t, srv, `{"type":"boom"}`)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"status":"error","message":"Internal error: kaboom"}`, got[0])
	})

	t.Run("jsonrpc without method falls back to type", func(t *testing.T) {
		srv, _ := startTestServer(t)
		srv.RegisterExternalCommandHandler(&staticHandler{name: "ping", result: map[string]any{"status": "success"}})
		got := dispatch(t, srv, `{"jsonrpc":"2.0","type":"ping"}`)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"status":"success"}`, got[0])
	})
}

func TestUnanswerablePayloadsAreDropped(t *testing.T) {
	payloads := []string{
		`{"foo":1,"bar":2}`,
		`{not json`,
		`[1,2,3]`,
		`"ping"`,
		`{"type":"ping"} trailing`,
		`{"jsonrpc":"1.0","method":"initialize"}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			srv, _ := startTestServer(t)
			srv.RegisterExternalCommandHandler(&staticHandler{name: "initialize", result: nil})
			assert.Empty(t, dispatch(t, srv, payload))
			assert.Equal(t, 1, srv.ConnectionCount())
		})
	}
}

func TestSendResponse(t *testing.T) {
	srv, _ := startTestServer(t)
	srv.RegisterExternalCommandHandler(NewHandler("progress", func(_ map[string]any, conn Connection) map[string]any {
		require.NoError(t, srv.SendResponse(conn, map[string]any{"status": "progress", "percent": 50}))
		return map[string]any{"status": "success"}
	}))

	got := dispatch(t, srv, `{"type":"progress"}`)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"status":"progress","percent":50}`, got[0])
	assert.JSONEq(t, `{"status":"success"}`, got[1])

	assert.ErrorIs(t, srv.SendResponse(fakeConnection{}, map[string]any{}), ErrUnknownConnection)
}

type fakeConnection struct{}

func (fakeConnection) ID() string         { return "fake" }
func (fakeConnection) RemoteAddr() string { return "127.0.0.1:1" }

func TestLifecycleEvents(t *testing.T) {
	bus := events.NewBus(quietLogger())
	defer bus.Close()

	topics := make(chan string, 16)
	for _, topic := range []string{events.TopicServerStarted, events.TopicClientConnected, events.TopicToolExecuted, events.TopicClientDisconnected, events.TopicServerStopped} {
		_, err := bus.SubscribeRaw(topic, func(_ context.Context, topic string, _ []byte) error {
			topics <- topic
			return nil
		})
		require.NoError(t, err)
	}

	srv, _ := startTestServer(t, WithEvents(bus))
	srv.RegisterExternalCommandHandler(&staticHandler{name: "ping", result: map[string]any{"status": "success"}})
	conn, _ := attach(t, srv)
	conn.Feed(`{"type":"ping"}`)
	srv.Tick(10 * time.Millisecond)
	srv.Stop()

	want := []string{events.TopicServerStarted, events.TopicClientConnected, events.TopicToolExecuted, events.TopicClientDisconnected, events.TopicServerStopped}
	var got []string
	for range want {
		select {
		case topic := <-topics:
			got = append(got, topic)
		case <-time.After(time.Second):
			t.Fatalf("received only %v", got)
		}
	}
	assert.ElementsMatch(t, want, got)
}
