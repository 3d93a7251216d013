package snapshotter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/trustgate/trustgate/internal/mcpclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubServer answers initialize and the four list methods with a fixed
// capability surface, regardless of call order.
func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		var result json.RawMessage
		switch req.Method {
		case "initialize":
			result = json.RawMessage(`{"serverInfo":{"name":"stub"}}`)
		case "tools/list":
			result = json.RawMessage(`{"tools":[{"name":"read"}]}`)
		case "resources/list":
			result = json.RawMessage(`{"resources":[{"uri":"file:///a"}]}`)
		case "resources/templates/list":
			result = json.RawMessage(`{"resourceTemplates":[{"uriTemplate":"file:///{x}"}]}`)
		case "prompts/list":
			result = json.RawMessage(`{"prompts":[{"name":"greet"}]}`)
		default:
			t.Fatalf("unexpected method %q", req.Method)
		}

		body, _ := json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Result  json.RawMessage `json:"result"`
		}{JSONRPC: "2.0", ID: req.ID, Result: result})
		_, _ = w.Write(body)
	}))
}

func TestTake_BuildsCanonicalSnapshot(t *testing.T) {
	t.Parallel()

	srv := stubServer(t)
	defer srv.Close()

	snap := New(mcpclient.New(), trace.NewNoopTracerProvider().Tracer("test"), nil, discardLogger())

	result, err := snap.Take(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Take() unexpected error: %v", err)
	}
	if len(result.Tools) != 1 || len(result.Resources) != 1 || len(result.ResourceTemplates) != 1 || len(result.Prompts) != 1 {
		t.Fatalf("unexpected list lengths: %+v", result)
	}
	if result.Hash == "" {
		t.Error("expected non-empty hash")
	}
	if result.CanonicalJSON == "" {
		t.Error("expected non-empty canonical JSON")
	}
}

func TestTake_DeterministicHashAcrossCalls(t *testing.T) {
	t.Parallel()

	srv := stubServer(t)
	defer srv.Close()

	snap := New(mcpclient.New(), trace.NewNoopTracerProvider().Tracer("test"), nil, discardLogger())

	first, err := snap.Take(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Take() unexpected error: %v", err)
	}
	second, err := snap.Take(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Take() unexpected error: %v", err)
	}
	if first.Hash != second.Hash {
		t.Errorf("hash mismatch across identical snapshots: %q != %q", first.Hash, second.Hash)
	}
}

func TestTake_InitializeFailurePropagates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	snap := New(mcpclient.New(), trace.NewNoopTracerProvider().Tracer("test"), nil, discardLogger())

	if _, err := snap.Take(context.Background(), srv.URL); err == nil {
		t.Error("expected error from failing initialize call")
	}
}
