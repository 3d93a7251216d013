// Package mcpclient implements the MCP Client (C2): a single per-call RPC
// to an upstream MCP server over JSON-RPC 2.0/HTTP, dispatching on
// Content-Type between a plain JSON body and a Server-Sent-Events stream.
package mcpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/trustgate/trustgate/internal/trustgateerr"
)

const (
	// protocolVersion is sent on every request per spec.md §4.2.
	protocolVersion = "2024-11-05"

	// maxResponseBodySize bounds a non-streamed JSON response body,
	// grounded on the teacher HTTP client's maxResponseBodySize.
	maxResponseBodySize = 10 * 1024 * 1024

	// defaultTimeout is the per-call request deadline (spec.md §4.2).
	defaultTimeout = 30 * time.Second
)

// Client issues one JSON-RPC call per Call invocation against an MCP
// endpoint. It is safe for concurrent use; the only state shared across
// calls is the atomic request-id counter and the underlying *http.Client's
// connection pool.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	nextID     atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient overrides the underlying *http.Client (tests use this to
// point at an httptest.Server transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client with a hardened default transport: TLS 1.2 floor and
// bounded idle connections, grounded on the teacher's outbound MCP HTTP
// client construction.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request is the outbound JSON-RPC 2.0 envelope.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is the inbound JSON-RPC 2.0 envelope.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// isResponse reports whether a decoded event looks like a JSON-RPC
// response (as opposed to a request or notification it should be ignored).
func (r *response) isResponse() bool {
	return r.Result != nil || r.Error != nil
}

// CallNext issues a JSON-RPC request using the client's own monotonically
// increasing id, satisfying spec.md §9's note that the source's constant
// id=1 must become a monotonic policy for correct behavior when responses
// could be multiplexed.
func (c *Client) CallNext(ctx context.Context, url, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.Call(ctx, url, method, params, c.nextID.Add(1))
}

// Call issues one JSON-RPC request to url and returns its decoded result,
// or a classified *trustgateerr.Error on failure.
func (c *Client) Call(ctx context.Context, url, method string, params json.RawMessage, id int64) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindConfig, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set("MCP-Protocol-Version", protocolVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindUpstreamUnreachable, fmt.Sprintf("POST %s", url), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, trustgateerr.New(trustgateerr.KindUpstreamUnreachable,
			fmt.Sprintf("http status %d from %s", httpResp.StatusCode, url))
	}

	contentType := httpResp.Header.Get("Content-Type")
	var resp *response
	switch {
	case containsMediaType(contentType, "text/event-stream"):
		resp, err = parseSSE(httpResp.Body)
	default:
		resp, err = parseJSON(httpResp.Body)
	}
	if err != nil {
		return nil, err
	}

	if resp.JSONRPC != "2.0" {
		return nil, trustgateerr.New(trustgateerr.KindProtocol, "response missing jsonrpc 2.0 envelope")
	}
	if resp.Error != nil {
		return nil, trustgateerr.RPC(resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// parseJSON decodes the full body as a single JSON-RPC response.
func parseJSON(body io.Reader) (*response, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodySize))
	if err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "read response body", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "decode JSON-RPC response", err)
	}
	return &resp, nil
}

// containsMediaType reports whether header starts with (or exactly
// matches, ignoring parameters like charset) the given media type.
func containsMediaType(header, mediaType string) bool {
	for i := 0; i < len(header); i++ {
		if header[i] == ';' {
			header = header[:i]
			break
		}
	}
	return trimSpace(header) == mediaType
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
