package service

import "testing"

func TestService_Validate_ValidService(t *testing.T) {
	t.Parallel()

	s := Service{Name: "fs", UpstreamURL: "http://localhost:3000/mcp"}
	if err := s.Validate(5); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestService_Validate_EmptyName(t *testing.T) {
	t.Parallel()

	s := Service{UpstreamURL: "http://localhost:3000/mcp"}
	if err := s.Validate(5); err == nil {
		t.Error("Validate() expected error for empty name, got nil")
	}
}

func TestService_Validate_InvalidNameCharacters(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"has space", "has/slash", "has.dot", ""} {
		s := Service{Name: name, UpstreamURL: "http://localhost:3000/mcp"}
		if err := s.Validate(5); err == nil {
			t.Errorf("Validate() name=%q expected error, got nil", name)
		}
	}
}

func TestService_Validate_ZeroCheckFrequencyAlwaysAllowed(t *testing.T) {
	t.Parallel()

	s := Service{Name: "fs", UpstreamURL: "http://localhost:3000/mcp", CheckFrequencyMinutes: 0}
	if err := s.Validate(5); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestService_Validate_CheckFrequencyBelowFloor(t *testing.T) {
	t.Parallel()

	s := Service{Name: "fs", UpstreamURL: "http://localhost:3000/mcp", CheckFrequencyMinutes: 1}
	if err := s.Validate(5); err == nil {
		t.Error("Validate() expected error for below-floor check frequency, got nil")
	}
}

func TestService_Validate_NegativeCheckFrequency(t *testing.T) {
	t.Parallel()

	s := Service{Name: "fs", UpstreamURL: "http://localhost:3000/mcp", CheckFrequencyMinutes: -1}
	if err := s.Validate(5); err == nil {
		t.Error("Validate() expected error for negative check frequency, got nil")
	}
}

func TestPatch_ChangesUpstreamURL(t *testing.T) {
	t.Parallel()

	newURL := "http://localhost:4000/mcp"
	p := Patch{UpstreamURL: &newURL}
	if !p.ChangesUpstreamURL("http://localhost:3000/mcp") {
		t.Error("ChangesUpstreamURL() = false, want true")
	}
	if p.ChangesUpstreamURL(newURL) {
		t.Error("ChangesUpstreamURL() = true for identical URL, want false")
	}
}

func TestPatch_Apply(t *testing.T) {
	t.Parallel()

	s := Service{Name: "fs", UpstreamURL: "http://localhost:3000/mcp", Enabled: true, CheckFrequencyMinutes: 5}
	newURL := "http://localhost:4000/mcp"
	enabled := false
	p := Patch{UpstreamURL: &newURL, Enabled: &enabled}
	p.Apply(&s)

	if s.UpstreamURL != newURL {
		t.Errorf("UpstreamURL = %q, want %q", s.UpstreamURL, newURL)
	}
	if s.Enabled {
		t.Error("Enabled = true, want false")
	}
	if s.CheckFrequencyMinutes != 5 {
		t.Errorf("CheckFrequencyMinutes = %d, want unchanged 5", s.CheckFrequencyMinutes)
	}
}
