// Package config provides configuration loading for trustgate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for trustgate.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself,
// which Viper's built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("trustgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: TRUSTGATE_POLLING_INTERVAL_SECONDS
	viper.SetEnvPrefix("TRUSTGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a trustgate config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper from
// matching the binary "trustgate" (no extension) in the current directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".trustgate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "trustgate"))
		}
	} else {
		paths = append(paths, "/etc/trustgate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for trustgate.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "trustgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// Example: TRUSTGATE_ADMIN_LISTEN_ADDR overrides admin.listen_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("admin.listen_addr")
	_ = viper.BindEnv("admin.password")
	_ = viper.BindEnv("admin.disable_ui")

	_ = viper.BindEnv("gateway.listen_addr")

	_ = viper.BindEnv("polling.interval_seconds")
	_ = viper.BindEnv("polling.min_check_frequency")

	_ = viper.BindEnv("database.path")

	_ = viper.BindEnv("base_url")
	_ = viper.BindEnv("log_level")

	_ = viper.BindEnv("telemetry.enabled")

	_ = viper.BindEnv("canon.filter_expr")

	// Note: services is an array, complex to override via env.
	// Use the config file for seeding services.

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults and dev defaults, validates, and returns the Config.
// Callers that apply CLI flag overrides (e.g. --dev) before validation use
// LoadConfigRaw instead.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// LoadServicesFile decodes a standalone services[] seed list from path, in
// the same shape as the main config's services: block. This lets operators
// keep a large seed list out of the main YAML file (or generate it
// separately) without Viper's env-override machinery getting involved,
// since Viper has no sane way to bind a dynamically-sized array to
// environment variables (see bindNestedEnvKeys's note on services).
func LoadServicesFile(path string) ([]ServiceSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file %s: %w", path, err)
	}

	var doc struct {
		Services []ServiceSeed `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse services file %s: %w", path, err)
	}
	return doc.Services, nil
}
