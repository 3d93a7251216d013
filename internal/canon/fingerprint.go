// Package canon implements the Canonicalizer (C1): it takes the four MCP
// capability families, sorts each by its stable key, renders the result as
// an RFC 8785 JCS canonical JSON document, and SHA-256-hashes the bytes.
//
// Two upstreams returning the same logical surface in different orders
// must produce identical hashes; any addition, removal, rename, or schema
// mutation of an advertised capability must flip it.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Lists holds the four raw capability families as returned by the MCP
// client, each item still the raw JSON object from the upstream response.
type Lists struct {
	Tools              []json.RawMessage
	Resources          []json.RawMessage
	ResourceTemplates  []json.RawMessage
	Prompts            []json.RawMessage
}

// stableKeys maps each family to the field it is sorted by.
var stableKeys = map[string]string{
	"tools":              "name",
	"resources":          "uri",
	"resource_templates": "uriTemplate",
	"prompts":            "name",
}

// familyOrder is the fixed order in which the four families are decoded.
// The rendered fingerprint object's keys follow JCS code-point order.
var familyOrder = []string{"tools", "resources", "resource_templates", "prompts"}

// Fingerprint produces the canonical JSON document and its hex SHA-256 for
// the given capability lists. VolatileFilter may be nil, in which case no
// filtering is applied (the spec's assumed baseline).
func Fingerprint(lists Lists, filter VolatileFilter) (canonicalJSON string, hashHex string, err error) {
	raw := map[string][]json.RawMessage{
		"tools":              lists.Tools,
		"resources":          lists.Resources,
		"resource_templates": lists.ResourceTemplates,
		"prompts":            lists.Prompts,
	}

	tree := make(map[string]any, len(familyOrder))
	for _, family := range familyOrder {
		items, err := decodeFamily(family, raw[family], filter)
		if err != nil {
			return "", "", err
		}
		tree[family] = items
	}

	canonical, err := marshalJCS(tree)
	if err != nil {
		return "", "", err
	}

	sum := sha256.Sum256(canonical)
	return string(canonical), hex.EncodeToString(sum[:]), nil
}

// decodeFamily decodes, optionally filters, and sorts one capability family.
func decodeFamily(family string, items []json.RawMessage, filter VolatileFilter) ([]any, error) {
	key := stableKeys[family]

	decoded := make([]any, 0, len(items))
	for _, raw := range items {
		v, err := decodeItem(raw)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			v = filter.Filter(family, v)
		}
		decoded = append(decoded, v)
	}

	sort.SliceStable(decoded, func(i, j int) bool {
		return stringField(decoded[i], key) < stringField(decoded[j], key)
	})

	return decoded, nil
}

// Canonicalize parses jsonText and re-renders it in JCS canonical form, so
// a stored snapshot's JSON can be re-canonicalized to check round-trip
// idempotence: Canonicalize(parse(canonicalize(x))) == canonicalize(x).
func Canonicalize(jsonText string) (string, error) {
	v, err := decodeItem(json.RawMessage(jsonText))
	if err != nil {
		return "", err
	}
	out, err := marshalJCS(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// HashHex returns the lower-case hex SHA-256 of s.
func HashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
