// Package diff compares two canonical capability snapshots and reports,
// per capability family, the added/removed/common identifier sets.
//
// Grounded on original_source/mcp_guardian/app/services/diff.py's
// compare_list_section/create_human_readable_diff pair.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// keyFields maps each capability family to the item field that identifies
// it, matching the sort keys the canonicalizer (C1) uses.
var keyFields = map[string]string{
	"tools":              "name",
	"resources":          "uri",
	"resource_templates": "uriTemplate",
	"prompts":            "name",
}

// families lists the four capability families in the fixed order the
// canonicalizer emits them.
var families = []string{"tools", "resources", "resource_templates", "prompts"}

// Family reports one capability family's added/removed/common identifiers.
type Family struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Common   []string `json:"common"`
	CountOld int      `json:"count_old"`
	CountNew int      `json:"count_new"`
}

// Diff reports the per-family comparison between two canonical snapshots.
type Diff struct {
	Tools             Family `json:"tools"`
	Resources         Family `json:"resources"`
	ResourceTemplates Family `json:"resource_templates"`
	Prompts           Family `json:"prompts"`
}

// Compute parses oldCanonicalJSON and newCanonicalJSON (each the fixed
// {tools,resources,resource_templates,prompts} fingerprint tree C1
// produces) and returns their per-family diff. Returns nil, nil if the two
// strings are byte-identical, per spec's "diff == null when the two
// snapshots are the same row".
func Compute(oldCanonicalJSON, newCanonicalJSON string) (*Diff, error) {
	if oldCanonicalJSON == newCanonicalJSON {
		return nil, nil
	}

	oldFamilies, err := parseFamilies(oldCanonicalJSON)
	if err != nil {
		return nil, fmt.Errorf("parse old snapshot: %w", err)
	}
	newFamilies, err := parseFamilies(newCanonicalJSON)
	if err != nil {
		return nil, fmt.Errorf("parse new snapshot: %w", err)
	}

	return &Diff{
		Tools:             compareFamily(oldFamilies["tools"], newFamilies["tools"], keyFields["tools"]),
		Resources:         compareFamily(oldFamilies["resources"], newFamilies["resources"], keyFields["resources"]),
		ResourceTemplates: compareFamily(oldFamilies["resource_templates"], newFamilies["resource_templates"], keyFields["resource_templates"]),
		Prompts:           compareFamily(oldFamilies["prompts"], newFamilies["prompts"], keyFields["prompts"]),
	}, nil
}

func parseFamilies(canonicalJSON string) (map[string][]map[string]any, error) {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal([]byte(canonicalJSON), &raw); err != nil {
		return nil, err
	}

	out := make(map[string][]map[string]any, len(families))
	for _, family := range families {
		items := make([]map[string]any, 0, len(raw[family]))
		for _, item := range raw[family] {
			var m map[string]any
			if err := json.Unmarshal(item, &m); err != nil {
				return nil, fmt.Errorf("family %s item: %w", family, err)
			}
			items = append(items, m)
		}
		out[family] = items
	}
	return out, nil
}

func compareFamily(oldItems, newItems []map[string]any, keyField string) Family {
	oldKeys := keySet(oldItems, keyField)
	newKeys := keySet(newItems, keyField)

	var added, removed, common []string
	for k := range newKeys {
		if !oldKeys[k] {
			added = append(added, k)
		} else {
			common = append(common, k)
		}
	}
	for k := range oldKeys {
		if !newKeys[k] {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(common)

	return Family{
		Added:    added,
		Removed:  removed,
		Common:   common,
		CountOld: len(oldItems),
		CountNew: len(newItems),
	}
}

func keySet(items []map[string]any, keyField string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		v, ok := item[keyField]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			set[s] = true
		}
	}
	return set
}

// Render produces a human-readable summary of d, or "No changes detected."
// for a nil diff.
func Render(d *Diff) string {
	if d == nil {
		return "No changes detected."
	}

	var b strings.Builder
	b.WriteString("Changes detected:")
	renderFamily(&b, "Tools", d.Tools)
	renderFamily(&b, "Resources", d.Resources)
	renderFamily(&b, "Resource templates", d.ResourceTemplates)
	renderFamily(&b, "Prompts", d.Prompts)
	return b.String()
}

func renderFamily(b *strings.Builder, label string, f Family) {
	if len(f.Added) == 0 && len(f.Removed) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:", label)
	if len(f.Added) > 0 {
		fmt.Fprintf(b, "\n  + Added: %s", strings.Join(f.Added, ", "))
	}
	if len(f.Removed) > 0 {
		fmt.Fprintf(b, "\n  - Removed: %s", strings.Join(f.Removed, ", "))
	}
}
