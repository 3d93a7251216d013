package mcpclient

import (
	"context"
	"encoding/json"

	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// clientInfo identifies trustgate to upstream MCP servers during initialize.
type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      clientInfo             `json:"clientInfo"`
}

// Initialize sends the MCP initialize handshake and returns the raw result,
// grounded on snapshotter.py's initialize_server.
func (c *Client) Initialize(ctx context.Context, url string) (json.RawMessage, error) {
	params, err := json.Marshal(initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]interface{}{
			"roots":    map[string]interface{}{"listChanged": false},
			"sampling": map[string]interface{}{},
		},
		ClientInfo: clientInfo{Name: "trustgate", Version: "0.1.0"},
	})
	if err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "encode initialize params", err)
	}

	result, err := c.CallNext(ctx, url, "initialize", params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// listParams carries the optional pagination cursor.
type listParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// pagedResult is the shape shared by every paginated MCP list method: a
// single array field (name varies per family) plus an optional cursor.
type pagedResult struct {
	NextCursor string            `json:"nextCursor"`
	Tools      []json.RawMessage `json:"tools"`
	Resources  []json.RawMessage `json:"resources"`
	Prompts    []json.RawMessage `json:"prompts"`
}

// listPaged walks method via its cursor/nextCursor protocol, extracting the
// itemsOf family from each page, until the server stops returning a cursor.
// A "Method not found" (-32601) response means the family is absent and
// yields an empty, non-error result, per spec.md §4.3.
func (c *Client) listPaged(ctx context.Context, url, method string, itemsOf func(*pagedResult) []json.RawMessage) ([]json.RawMessage, error) {
	var all []json.RawMessage
	cursor := ""

	for {
		var params json.RawMessage
		if cursor != "" {
			encoded, err := json.Marshal(listParams{Cursor: cursor})
			if err != nil {
				return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "encode list params", err)
			}
			params = encoded
		}

		raw, err := c.CallNext(ctx, url, method, params)
		if err != nil {
			if trustgateerr.Is(err, trustgateerr.KindMethodNotFound) {
				return nil, nil
			}
			return nil, err
		}

		var result pagedResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "decode "+method+" result", err)
		}

		all = append(all, itemsOf(&result)...)

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return all, nil
}

// ListTools returns every tool from url, walking pagination. An empty,
// nil-error result means the server does not implement tools/list.
func (c *Client) ListTools(ctx context.Context, url string) ([]json.RawMessage, error) {
	return c.listPaged(ctx, url, "tools/list", func(r *pagedResult) []json.RawMessage { return r.Tools })
}

// ListResources returns every resource from url, walking pagination.
func (c *Client) ListResources(ctx context.Context, url string) ([]json.RawMessage, error) {
	return c.listPaged(ctx, url, "resources/list", func(r *pagedResult) []json.RawMessage { return r.Resources })
}

// ListPrompts returns every prompt from url, walking pagination.
func (c *Client) ListPrompts(ctx context.Context, url string) ([]json.RawMessage, error) {
	return c.listPaged(ctx, url, "prompts/list", func(r *pagedResult) []json.RawMessage { return r.Prompts })
}

// resourceTemplatesResult is the unpaginated resources/templates/list shape.
type resourceTemplatesResult struct {
	ResourceTemplates []json.RawMessage `json:"resourceTemplates"`
}

// ListResourceTemplates returns every resource template from url. Unlike the
// other three families, this method takes no cursor per spec.md §4.3.
func (c *Client) ListResourceTemplates(ctx context.Context, url string) ([]json.RawMessage, error) {
	raw, err := c.CallNext(ctx, url, "resources/templates/list", nil)
	if err != nil {
		if trustgateerr.Is(err, trustgateerr.KindMethodNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result resourceTemplatesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindProtocol, "decode resources/templates/list result", err)
	}
	return result.ResourceTemplates, nil
}
