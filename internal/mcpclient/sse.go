package mcpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// sseReadChunk is the read buffer size for the streaming body. MCP
// responses are small; this only bounds how much is buffered per Read.
const sseReadChunk = 32 * 1024

// parseSSE consumes an SSE stream framed by the literal "\n\n" delimiter,
// reassembling each event from its consecutive "data: " lines, and returns
// the first event whose body decodes as a JSON-RPC response (contains
// "result" or "error"). Events that are not JSON, or are JSON-RPC requests
// or notifications, are ignored. Frame detection must not collapse "\r\n"
// to "\n" before buffering, or the frame boundary moves.
func parseSSE(body io.Reader) (*response, error) {
	var buf bytes.Buffer
	chunk := make([]byte, sseReadChunk)
	eof := false

	for {
		for {
			text := buf.String()
			idx := strings.Index(text, "\n\n")
			if idx < 0 {
				break
			}
			eventText := text[:idx]
			buf.Reset()
			buf.WriteString(text[idx+2:])

			resp, ok := parseSSEEvent(eventText)
			if ok {
				return resp, nil
			}
		}
		if eof {
			break
		}

		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			eof = true
		} else if err != nil {
			return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "read SSE stream", err)
		}
	}

	return nil, trustgateerr.New(trustgateerr.KindProtocol, "no response in stream")
}

// parseSSEEvent extracts the data lines from one "\n"-joined SSE event and,
// if they decode to a JSON-RPC response, returns it.
func parseSSEEvent(eventText string) (*response, bool) {
	var dataLines []string
	for _, line := range strings.Split(eventText, "\n") {
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			dataLines = append(dataLines, rest)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, rest)
		}
	}
	if len(dataLines) == 0 {
		return nil, false
	}

	eventData := strings.Join(dataLines, "\n")

	var resp response
	if err := json.Unmarshal([]byte(eventData), &resp); err != nil {
		return nil, false
	}
	if !resp.isResponse() {
		return nil, false
	}
	return &resp, true
}
