package puttleproxy

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// responseAccumulator collects bytes read from the upstream socket during
// the CONNECT handshake until a complete header block has arrived, then
// exposes the parsed status code and header map.
type responseAccumulator struct {
	buf bytes.Buffer
}

// Write appends more bytes read from the upstream socket.
func (r *responseAccumulator) Write(p []byte) {
	r.buf.Write(p)
}

// headersComplete reports whether the accumulated bytes contain a full
// header block, i.e. either "\r\n\r\n" or "\n\n".
func (r *responseAccumulator) headersComplete() bool {
	b := r.buf.Bytes()
	return bytes.Contains(b, []byte("\r\n\r\n")) || bytes.Contains(b, []byte("\n\n"))
}

// parsedResponse is the result of parsing a complete CONNECT response.
type parsedResponse struct {
	Status  int
	Headers map[string]string
}

// parse validates and extracts the status line and headers from the
// accumulated bytes. It requires headersComplete() to be true.
func (r *responseAccumulator) parse() (parsedResponse, error) {
	text := r.buf.String()

	if len(text) < 5 || text[:5] != "HTTP/" {
		return parsedResponse{}, fmt.Errorf("puttleproxy: malformed response: missing HTTP/ prefix")
	}

	sp := strings.IndexByte(text, ' ')
	if sp < 0 || sp+3 > len(text) {
		return parsedResponse{}, fmt.Errorf("puttleproxy: malformed response: no status code")
	}
	statusStr := text[sp+1 : sp+4]
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return parsedResponse{}, fmt.Errorf("puttleproxy: malformed response: bad status code %q", statusStr)
	}

	headers := make(map[string]string)
	for _, line := range strings.Split(text, "\r\n") {
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		name := line[:idx]
		value := line[idx+2:]
		headers[name] = value
	}

	return parsedResponse{Status: status, Headers: headers}, nil
}
