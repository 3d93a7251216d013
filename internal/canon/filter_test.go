package canon

import (
	"encoding/json"
	"testing"
)

func TestCELVolatileFilter_StripsNamedField(t *testing.T) {
	t.Parallel()

	filter, err := NewCELVolatileFilter(`family == "tools" ? ["lastSeen"] : []`)
	if err != nil {
		t.Fatalf("NewCELVolatileFilter() unexpected error: %v", err)
	}

	lists := Lists{
		Tools: []json.RawMessage{json.RawMessage(`{"name":"read","lastSeen":"2026-01-01"}`)},
	}

	canonical, _, err := Fingerprint(lists, filter)
	if err != nil {
		t.Fatalf("Fingerprint() unexpected error: %v", err)
	}
	want := `{"prompts":[],"resource_templates":[],"resources":[],"tools":[{"name":"read"}]}`
	if canonical != want {
		t.Errorf("canonical = %q, want %q", canonical, want)
	}
}

func TestCELVolatileFilter_LeavesOtherFamiliesUntouched(t *testing.T) {
	t.Parallel()

	filter, err := NewCELVolatileFilter(`family == "tools" ? ["lastSeen"] : []`)
	if err != nil {
		t.Fatalf("NewCELVolatileFilter() unexpected error: %v", err)
	}

	lists := Lists{
		Resources: []json.RawMessage{json.RawMessage(`{"uri":"file:///a","lastSeen":"2026-01-01"}`)},
	}

	canonical, _, err := Fingerprint(lists, filter)
	if err != nil {
		t.Fatalf("Fingerprint() unexpected error: %v", err)
	}
	want := `{"prompts":[],"resource_templates":[],"resources":[{"lastSeen":"2026-01-01","uri":"file:///a"}],"tools":[]}`
	if canonical != want {
		t.Errorf("canonical = %q, want %q", canonical, want)
	}
}

func TestNewCELVolatileFilter_EmptyExpressionErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewCELVolatileFilter(""); err == nil {
		t.Error("NewCELVolatileFilter(\"\") expected error, got nil")
	}
}

func TestNewCELVolatileFilter_InvalidExpressionErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewCELVolatileFilter("not ( valid cel"); err == nil {
		t.Error("NewCELVolatileFilter() with invalid expression expected error, got nil")
	}
}

func TestNilFilterMeansNoFiltering(t *testing.T) {
	t.Parallel()

	lists := Lists{Tools: []json.RawMessage{json.RawMessage(`{"name":"read","lastSeen":"2026-01-01"}`)}}
	canonical, _, err := Fingerprint(lists, nil)
	if err != nil {
		t.Fatalf("Fingerprint() unexpected error: %v", err)
	}
	want := `{"prompts":[],"resource_templates":[],"resources":[],"tools":[{"lastSeen":"2026-01-01","name":"read"}]}`
	if canonical != want {
		t.Errorf("canonical = %q, want %q", canonical, want)
	}
}
