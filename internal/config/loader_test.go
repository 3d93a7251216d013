package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServicesFile_ParsesServicesBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	content := `
services:
  - name: fs
    upstream_url: http://localhost:9001/mcp
    enabled: true
    check_frequency_minutes: 5
  - name: db
    upstream_url: http://localhost:9002/mcp
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write services file: %v", err)
	}

	seeds, err := LoadServicesFile(path)
	if err != nil {
		t.Fatalf("LoadServicesFile() unexpected error: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("len(seeds) = %d, want 2", len(seeds))
	}
	if seeds[0].Name != "fs" || !seeds[0].Enabled || seeds[0].CheckFrequencyMinutes != 5 {
		t.Errorf("seeds[0] = %+v, unexpected", seeds[0])
	}
	if seeds[1].Name != "db" || seeds[1].Enabled {
		t.Errorf("seeds[1] = %+v, unexpected", seeds[1])
	}
}

func TestLoadServicesFile_MissingFileErrors(t *testing.T) {
	if _, err := LoadServicesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadServicesFile_InvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatalf("write bad yaml: %v", err)
	}

	if _, err := LoadServicesFile(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}
