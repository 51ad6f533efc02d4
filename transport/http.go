package transport

import (
	"bytes"
	"strconv"
)

// WrapHTTPResponse frames a JSON body as a complete HTTP/1.1 200 response.
// Content-Length is the byte length of body.
func WrapHTTPResponse(body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body) + 160)

	buf.WriteString("HTTP/1.1 200 OK\r\n")
	buf.WriteString("Content-Type: application/json\r\n")
	buf.WriteString("Access-Control-Allow-Origin: *\r\n")
	buf.WriteString("Connection: close\r\n")
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)

	return buf.Bytes()
}

// WrapHTTPRequest frames a JSON body as an HTTP POST to path, the way HTTP
// MCP clients talk to the server.
func WrapHTTPRequest(host, path string, body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body) + 160)

	buf.WriteString("POST ")
	buf.WriteString(path)
	buf.WriteString(" HTTP/1.1\r\n")
	buf.WriteString("Host: ")
	buf.WriteString(host)
	buf.WriteString("\r\n")
	buf.WriteString("Content-Type: application/json\r\n")
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)

	return buf.Bytes()
}
