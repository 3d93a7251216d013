package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// serviceNamePattern matches spec.md's service name grammar.
var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RegisterCustomValidators registers trustgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("service_name", validateServiceName); err != nil {
		return fmt.Errorf("failed to register service_name validator: %w", err)
	}
	return nil
}

// validateServiceName validates a service name against serviceNamePattern.
func validateServiceName(fl validator.FieldLevel) bool {
	return serviceNamePattern.MatchString(fl.Field().String())
}

// Validate validates a Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func Validate(c *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := validateServiceNamesUnique(c); err != nil {
		return err
	}
	if err := validateCheckFrequencyFloor(c); err != nil {
		return err
	}

	return nil
}

// validateServiceNamesUnique ensures no two seeded services share a name
// and that each name matches serviceNamePattern (struct tags don't carry
// the regex since it's defined in this package, not a stdlib-visible one).
func validateServiceNamesUnique(c *Config) error {
	seen := make(map[string]struct{}, len(c.Services))
	for i, svc := range c.Services {
		if !serviceNamePattern.MatchString(svc.Name) {
			return fmt.Errorf("services[%d]: name %q must match %s", i, svc.Name, serviceNamePattern.String())
		}
		if _, dup := seen[svc.Name]; dup {
			return fmt.Errorf("services[%d]: duplicate service name %q", i, svc.Name)
		}
		seen[svc.Name] = struct{}{}
	}
	return nil
}

// validateCheckFrequencyFloor ensures any non-zero seeded check frequency
// respects polling.min_check_frequency. A frequency of 0 means "never
// auto-checked" and is always allowed.
func validateCheckFrequencyFloor(c *Config) error {
	floor := c.Polling.MinCheckFrequency
	for i, svc := range c.Services {
		if svc.CheckFrequencyMinutes == 0 {
			continue
		}
		if svc.CheckFrequencyMinutes < floor {
			return fmt.Errorf("services[%d]: check_frequency_minutes %d is below polling.min_check_frequency %d",
				i, svc.CheckFrequencyMinutes, floor)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "service_name":
		return fmt.Sprintf("%s must match %s", field, serviceNamePattern.String())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
