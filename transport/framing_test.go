package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayloadsRaw(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"single line", `{"type":"ping"}` + "\n", []string{`{"type":"ping"}`}},
		{"no trailing newline", `{"type":"ping"}`, []string{`{"type":"ping"}`}},
		{"pipelined", "{\"a\":1}\n{\"b\":2}\n", []string{`{"a":1}`, `{"b":2}`}},
		{"blank lines and crlf", "\r\n  {\"a\":1}  \r\n\n\n{\"b\":2}\r\n", []string{`{"a":1}`, `{"b":2}`}},
		{"garbage kept in order", "{\"a\":1}\nnot json\n{\"b\":2}", []string{`{"a":1}`, "not json", `{"b":2}`}},
		{"whitespace only", " \n\t\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPayloads([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPayloadsHTTP(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`

	t.Run("crlf separator", func(t *testing.T) {
		data := "POST /mcp HTTP/1.1\r\nHost: localhost\r\nContent-Type: application/json\r\n\r\n" + body + "\r\n"
		got, err := ExtractPayloads([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, []string{body}, got)
	})

	t.Run("lf separator", func(t *testing.T) {
		data := "POST / HTTP/1.1\nHost: localhost\n\n" + body
		got, err := ExtractPayloads([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, []string{body}, got)
	})

	t.Run("body with newlines is one payload", func(t *testing.T) {
		multi := "{\n  \"type\": \"ping\"\n}"
		data := "POST / HTTP/1.1\r\n\r\n" + multi
		got, err := ExtractPayloads([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, []string{multi}, got)
	})

	t.Run("get request", func(t *testing.T) {
		data := "GET / HTTP/1.1\r\n\r\n" + body
		got, err := ExtractPayloads([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, []string{body}, got)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := ExtractPayloads([]byte("POST / HTTP/1.1\r\nHost: x\r\n"))
		assert.ErrorIs(t, err, ErrNoHeaderSeparator)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := ExtractPayloads([]byte("POST / HTTP/1.1\r\nHost: x\r\n\r\n  \r\n"))
		assert.ErrorIs(t, err, ErrEmptyBody)
	})
}

func TestDetectFraming(t *testing.T) {
	assert.Equal(t, FramingHTTP, DetectFraming([]byte("POST / HTTP/1.1")))
	assert.Equal(t, FramingHTTP, DetectFraming([]byte("GET / HTTP/1.1")))
	assert.Equal(t, FramingRaw, DetectFraming([]byte(`{"type":"ping"}`)))
	assert.Equal(t, FramingRaw, DetectFraming([]byte(" POST")))
	assert.Equal(t, "http", FramingHTTP.String())
	assert.Equal(t, "raw", FramingRaw.String())
}
