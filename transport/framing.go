package transport

import (
	"bytes"
	"errors"
	"strings"
)

// Framing identifies how a chunk of inbound bytes is delimited.
type Framing int

const (
	// FramingRaw is newline-delimited JSON.
	FramingRaw Framing = iota
	// FramingHTTP is a single JSON body behind HTTP request headers.
	FramingHTTP
)

func (f Framing) String() string {
	if f == FramingHTTP {
		return "http"
	}
	return "raw"
}

var (
	// ErrNoHeaderSeparator reports an HTTP request without a blank line
	// between headers and body.
	ErrNoHeaderSeparator = errors.New("no header/body separator in HTTP request")

	// ErrEmptyBody reports an HTTP request whose body is empty after trimming.
	ErrEmptyBody = errors.New("empty HTTP request body")
)

var (
	crlfSeparator = []byte("\r\n\r\n")
	lfSeparator   = []byte("\n\n")
)

// DetectFraming reports FramingHTTP when data starts with a POST or GET
// request line.
func DetectFraming(data []byte) Framing {
	if bytes.HasPrefix(data, []byte("POST")) || bytes.HasPrefix(data, []byte("GET")) {
		return FramingHTTP
	}
	return FramingRaw
}

// ExtractPayloads splits one read's worth of bytes into JSON payloads.
//
// HTTP-framed data yields exactly one payload, the trimmed body after the
// first "\r\n\r\n" (or "\n\n"). Raw data yields every non-empty trimmed line
// in order. Partial lines are not carried over between calls.
func ExtractPayloads(data []byte) ([]string, error) {
	if DetectFraming(data) == FramingHTTP {
		body, err := httpBody(data)
		if err != nil {
			return nil, err
		}
		return []string{body}, nil
	}

	var payloads []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			payloads = append(payloads, line)
		}
	}
	return payloads, nil
}

func httpBody(data []byte) (string, error) {
	sep := crlfSeparator
	idx := bytes.Index(data, sep)
	if idx < 0 {
		sep = lfSeparator
		idx = bytes.Index(data, sep)
	}
	if idx < 0 {
		return "", ErrNoHeaderSeparator
	}

	body := strings.TrimSpace(string(data[idx+len(sep):]))
	if body == "" {
		return "", ErrEmptyBody
	}
	return body, nil
}
