// Package config provides configuration types for trustgate.
//
// Configuration combines a YAML file (optional) with environment variable
// overrides via viper, and a services[] block that seeds the Store at
// startup on a creation-only basis (it never overwrites an existing
// service of the same name).
package config

import (
	"crypto/rand"
	"encoding/base64"
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for trustgate.
type Config struct {
	// Admin configures the admin control plane listener and authenticator.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Gateway configures the proxy gateway listener (C9).
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Polling configures the check scheduler (C6) and registry poller (C7).
	Polling PollingConfig `yaml:"polling" mapstructure:"polling"`

	// Database configures the SQLite-backed store (C4).
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// BaseURL is used to build the client-config snippet endpoint
	// (base_url + "/" + service_name + "/mcp").
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Services pre-registers upstreams at startup. Creation-only: a service
	// whose name already exists in the Store is left untouched.
	Services []ServiceSeed `yaml:"services" mapstructure:"services" validate:"omitempty,dive"`

	// Telemetry configures OTel tracing/metrics for the snapshot pipeline.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// LogLevel sets the minimum log/slog level.
	// Valid values: "debug", "info", "warn", "error". Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DevMode relaxes admin authentication for local development.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`

	// Canon configures the Canonicalizer's optional volatile-field filter.
	Canon CanonConfig `yaml:"canon" mapstructure:"canon"`
}

// CanonConfig configures the Canonicalizer (C1) volatile-field filter.
type CanonConfig struct {
	// FilterExpr is a CEL expression evaluated once per capability item
	// (with `family` and `item` bound), returning the list of top-level
	// field names to strip from that item before hashing. Applied process-wide, to every service's
	// snapshot. Empty means no filtering (the default).
	FilterExpr string `yaml:"filter_expr" mapstructure:"filter_expr"`
}

// AdminConfig configures the admin control plane (C8).
type AdminConfig struct {
	// ListenAddr is the address the admin API listens on.
	// Defaults to "127.0.0.1:8081" (localhost only).
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// Password is the admin bootstrap password. If absent, a random
	// 16-byte URL-safe value is generated at startup and logged once.
	Password string `yaml:"password" mapstructure:"password"`

	// DisableUI is accepted for compatibility with the original config
	// schema. trustgate ships no HTML admin surface (the JSON API is the
	// only admin surface), so this flag has no effect beyond a warning log.
	DisableUI bool `yaml:"disable_ui" mapstructure:"disable_ui"`
}

// GatewayConfig configures the transparent proxy gateway (C9).
type GatewayConfig struct {
	// ListenAddr is the address the proxy gateway listens on.
	// Defaults to "0.0.0.0:8080".
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`
}

// PollingConfig configures the check scheduler and registry poller cadence.
type PollingConfig struct {
	// IntervalSeconds is the tick interval for both C6 and C7.
	// Defaults to 60.
	IntervalSeconds int `yaml:"interval_seconds" mapstructure:"interval_seconds" validate:"omitempty,min=1"`

	// MinCheckFrequency is the floor (in minutes) for any non-zero
	// Service.CheckFrequencyMinutes. Defaults to 5.
	MinCheckFrequency int `yaml:"min_check_frequency" mapstructure:"min_check_frequency" validate:"omitempty,min=1"`
}

// DatabaseConfig configures the SQLite store location.
type DatabaseConfig struct {
	// Path is the filesystem path to the SQLite database file.
	// Defaults to "./trustgate.db". Use ":memory:" for ephemeral runs.
	Path string `yaml:"path" mapstructure:"path"`
}

// ServiceSeed configures a pre-registered service imported at startup.
// Creation-only: never overwrites an existing service of the same name.
type ServiceSeed struct {
	Name                  string `yaml:"name" mapstructure:"name" validate:"required"`
	UpstreamURL           string `yaml:"upstream_url" mapstructure:"upstream_url" validate:"required,url"`
	Enabled               bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckFrequencyMinutes int    `yaml:"check_frequency_minutes" mapstructure:"check_frequency_minutes" validate:"omitempty,min=0"`
}

// TelemetryConfig gates the OTel stdout exporters wired into the
// snapshotter (C3). Disabled by default, in which case spans are still
// recorded but written to io.Discard instead of stderr.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies sensible default values to the configuration.
// Must be called before Validate.
func (c *Config) SetDefaults() {
	if c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = "127.0.0.1:8081"
	}
	if c.Gateway.ListenAddr == "" {
		c.Gateway.ListenAddr = "0.0.0.0:8080"
	}
	if !viper.IsSet("polling.interval_seconds") && c.Polling.IntervalSeconds == 0 {
		c.Polling.IntervalSeconds = 60
	}
	if !viper.IsSet("polling.min_check_frequency") && c.Polling.MinCheckFrequency == 0 {
		c.Polling.MinCheckFrequency = 5
	}
	if c.Database.Path == "" {
		c.Database.Path = "./trustgate.db"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://" + c.Gateway.ListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied before validation, after SetDefaults.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Admin.Password == "" {
		c.Admin.Password = "dev-admin-password"
	}
}

// adminPasswordEnv is the name of the env var checked before generating a
// random admin password, so operators can inject one via secrets managers
// without touching the YAML file.
const adminPasswordEnv = "TRUSTGATE_ADMIN_PASSWORD"

// ResolveAdminPassword returns the configured admin password, falling back
// to the environment variable and finally to a freshly generated random
// value. The bool return is true when a value was generated (the caller
// should log it once, since it cannot be recovered afterwards).
func (c *Config) ResolveAdminPassword() (string, bool) {
	if c.Admin.Password != "" {
		return c.Admin.Password, false
	}
	if v := os.Getenv(adminPasswordEnv); v != "" {
		return v, false
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read should never fail on modern systems.
		return "dev-admin-password-insecure-fallback", true
	}
	return base64.RawURLEncoding.EncodeToString(b), true
}
