package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Admin.ListenAddr != "127.0.0.1:8081" {
		t.Errorf("Admin.ListenAddr = %q, want %q", cfg.Admin.ListenAddr, "127.0.0.1:8081")
	}
	if cfg.Gateway.ListenAddr != "0.0.0.0:8080" {
		t.Errorf("Gateway.ListenAddr = %q, want %q", cfg.Gateway.ListenAddr, "0.0.0.0:8080")
	}
	if cfg.Polling.IntervalSeconds != 60 {
		t.Errorf("Polling.IntervalSeconds = %d, want 60", cfg.Polling.IntervalSeconds)
	}
	if cfg.Polling.MinCheckFrequency != 5 {
		t.Errorf("Polling.MinCheckFrequency = %d, want 5", cfg.Polling.MinCheckFrequency)
	}
	if cfg.Database.Path != "./trustgate.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./trustgate.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Admin:    AdminConfig{ListenAddr: "10.0.0.1:9999"},
		Database: DatabaseConfig{Path: "/var/lib/trustgate/custom.db"},
		LogLevel: "debug",
	}
	cfg.SetDefaults()

	if cfg.Admin.ListenAddr != "10.0.0.1:9999" {
		t.Errorf("Admin.ListenAddr was overwritten: got %q", cfg.Admin.ListenAddr)
	}
	if cfg.Database.Path != "/var/lib/trustgate/custom.db" {
		t.Errorf("Database.Path was overwritten: got %q", cfg.Database.Path)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel was overwritten: got %q", cfg.LogLevel)
	}
}

func TestConfig_SetDefaults_BaseURLDerivedFromGateway(t *testing.T) {
	t.Parallel()

	cfg := Config{Gateway: GatewayConfig{ListenAddr: "0.0.0.0:9090"}}
	cfg.SetDefaults()

	want := "http://0.0.0.0:9090"
	if cfg.BaseURL != want {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, want)
	}
}

func TestConfig_SetDevDefaults_NoOpWhenNotDevMode(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDevDefaults()

	if cfg.Admin.Password != "" {
		t.Errorf("Admin.Password = %q, want empty when DevMode is false", cfg.Admin.Password)
	}
}

func TestConfig_SetDevDefaults_SetsPasswordInDevMode(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Admin.Password == "" {
		t.Error("Admin.Password should be set when DevMode is true")
	}
}

func TestConfig_ResolveAdminPassword_UsesConfiguredValue(t *testing.T) {
	t.Parallel()

	cfg := Config{Admin: AdminConfig{Password: "s3cret"}}
	pw, generated := cfg.ResolveAdminPassword()

	if pw != "s3cret" {
		t.Errorf("password = %q, want %q", pw, "s3cret")
	}
	if generated {
		t.Error("generated should be false when password is configured")
	}
}

func TestConfig_ResolveAdminPassword_GeneratesWhenAbsent(t *testing.T) {
	cfg := Config{}
	pw, generated := cfg.ResolveAdminPassword()

	if pw == "" {
		t.Error("expected a generated password, got empty string")
	}
	if !generated {
		t.Error("generated should be true when no password is configured")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "trustgate.yaml")
	_ = os.WriteFile(cfgPath, []byte("admin:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "trustgate.yml")
	_ = os.WriteFile(cfgPath, []byte("admin:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "trustgate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "trustgate.yaml")
	ymlPath := filepath.Join(dir, "trustgate.yml")
	_ = os.WriteFile(yamlPath, []byte("admin:\n  listen_addr: 127.0.0.1:8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("admin:\n  listen_addr: 127.0.0.1:9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
