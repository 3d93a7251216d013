// Package service contains the Service domain type: a registered MCP
// upstream the proxy gateway may forward traffic to.
package service

import (
	"fmt"
	"regexp"
	"time"
)

// namePattern is the service name grammar: alphanumeric, hyphen, underscore.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// nameMaxLength bounds name length to keep it usable as a URL path segment.
const nameMaxLength = 100

// Service is a registered MCP upstream.
type Service struct {
	// ID is the unique identifier (UUID v4).
	ID string
	// Name is the unique, case-sensitive display name and proxy path segment.
	Name string
	// UpstreamURL is the MCP endpoint this service proxies to.
	UpstreamURL string
	// Enabled gates whether the Route Registry permits traffic to it.
	Enabled bool
	// CheckFrequencyMinutes is the auto-check interval. 0 means never
	// auto-checked. Any non-zero value must be >= the configured floor.
	CheckFrequencyMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks name and check-frequency constraints.
// minCheckFrequency is the configured floor (e.g. 5) for non-zero values.
func (s *Service) Validate(minCheckFrequency int) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Name) > nameMaxLength {
		return fmt.Errorf("name must be %d characters or less", nameMaxLength)
	}
	if !namePattern.MatchString(s.Name) {
		return fmt.Errorf("name contains invalid characters (allowed: alphanumeric, hyphen, underscore)")
	}
	if s.UpstreamURL == "" {
		return fmt.Errorf("upstream_url is required")
	}
	if s.CheckFrequencyMinutes < 0 {
		return fmt.Errorf("check_frequency_minutes must be non-negative")
	}
	if s.CheckFrequencyMinutes != 0 && s.CheckFrequencyMinutes < minCheckFrequency {
		return fmt.Errorf("check_frequency_minutes must be 0 or at least %d", minCheckFrequency)
	}
	return nil
}

// ValidName reports whether name matches the service name grammar.
func ValidName(name string) bool {
	return namePattern.MatchString(name) && len(name) <= nameMaxLength
}

// Patch describes a partial update to a Service. Nil fields are left
// unchanged.
type Patch struct {
	UpstreamURL           *string
	Enabled               *bool
	CheckFrequencyMinutes *int
}

// ChangesUpstreamURL reports whether the patch would change the upstream
// URL to a different value than current.
func (p Patch) ChangesUpstreamURL(current string) bool {
	return p.UpstreamURL != nil && *p.UpstreamURL != current
}

// Apply applies the patch fields onto the service in place.
func (p Patch) Apply(s *Service) {
	if p.UpstreamURL != nil {
		s.UpstreamURL = *p.UpstreamURL
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.CheckFrequencyMinutes != nil {
		s.CheckFrequencyMinutes = *p.CheckFrequencyMinutes
	}
}
