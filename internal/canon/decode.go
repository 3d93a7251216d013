package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeItem decodes a single raw JSON item (as returned inline in an MCP
// list response) into the plain value tree marshalJCS understands, using
// json.Number so number literals survive until formatECMANumber renders
// them, rather than going through a lossy float64 round-trip twice.
func decodeItem(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode item: %w", err)
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers walks a decoded value tree replacing json.Number leaves
// with numberLiteral, the type writeJCS knows how to render.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return numberLiteral(string(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeNumbers(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeNumbers(val)
		}
		return out
	default:
		return v
	}
}

// stringField extracts a top-level string field from a decoded item,
// returning "" if absent or not a string — mirroring the Python original's
// `x.get(key_field, "")`.
func stringField(item any, key string) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}
