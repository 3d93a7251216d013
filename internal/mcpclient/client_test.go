package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trustgate/trustgate/internal/trustgateerr"
)

func TestCall_JSONResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("MCP-Protocol-Version"); got != protocolVersion {
			t.Errorf("MCP-Protocol-Version = %q, want %q", got, protocolVersion)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if req.Method != "ping" {
			t.Errorf("method = %q, want ping", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(response{JSONRPC: "2.0", ID: mustMarshal(req.ID), Result: json.RawMessage(`{"ok":true}`)})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := New()
	result, err := c.Call(context.Background(), srv.URL, "ping", nil, 1)
	if err != nil {
		t.Fatalf("Call() unexpected error: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("result = %s, want {\"ok\":true}", result)
	}
}

func TestCall_SSEResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte("event: message\n"))
		_, _ = w.Write([]byte(`data: {"jsonrpc":"2.0","id":1,"result":{"ok":true}}` + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New()
	result, err := c.Call(context.Background(), srv.URL, "ping", nil, 1)
	if err != nil {
		t.Fatalf("Call() unexpected error: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("result = %s, want {\"ok\":true}", result)
	}
}

func TestCall_RPCErrorClassifiesMethodNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Call(context.Background(), srv.URL, "tools/list", nil, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !trustgateerr.Is(err, trustgateerr.KindMethodNotFound) {
		t.Errorf("expected KindMethodNotFound, got %v", err)
	}
}

func TestCall_RPCErrorOtherCodeClassifiesAsRPC(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Call(context.Background(), srv.URL, "tools/list", nil, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !trustgateerr.Is(err, trustgateerr.KindRPC) {
		t.Errorf("expected KindRPC, got %v", err)
	}
}

func TestCall_NonSuccessStatusIsUpstreamUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Call(context.Background(), srv.URL, "ping", nil, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !trustgateerr.Is(err, trustgateerr.KindUpstreamUnreachable) {
		t.Errorf("expected KindUpstreamUnreachable, got %v", err)
	}
}

func TestCall_MissingJSONRPCEnvelopeIsProtocolError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"result":{}}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Call(context.Background(), srv.URL, "ping", nil, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !trustgateerr.Is(err, trustgateerr.KindProtocol) {
		t.Errorf("expected KindProtocol, got %v", err)
	}
}

func TestCallNext_IncrementsID(t *testing.T) {
	t.Parallel()

	var seenIDs []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		seenIDs = append(seenIDs, req.ID)
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(response{JSONRPC: "2.0", ID: mustMarshal(req.ID), Result: json.RawMessage(`{}`)})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := New()
	if _, err := c.CallNext(context.Background(), srv.URL, "ping", nil); err != nil {
		t.Fatalf("CallNext() unexpected error: %v", err)
	}
	if _, err := c.CallNext(context.Background(), srv.URL, "ping", nil); err != nil {
		t.Fatalf("CallNext() unexpected error: %v", err)
	}
	if len(seenIDs) != 2 || seenIDs[0] == seenIDs[1] {
		t.Errorf("expected two distinct ids, got %v", seenIDs)
	}
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func TestContainsMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header    string
		mediaType string
		want      bool
	}{
		{"application/json", "application/json", true},
		{"application/json; charset=utf-8", "application/json", true},
		{"text/event-stream", "application/json", false},
		{"  application/json  ", "application/json", true},
	}

	for _, tc := range tests {
		if got := containsMediaType(tc.header, tc.mediaType); got != tc.want {
			t.Errorf("containsMediaType(%q, %q) = %v, want %v", tc.header, tc.mediaType, got, tc.want)
		}
	}
}
