package registry

import "testing"

func TestReload_SeparatesEnabledFromAll(t *testing.T) {
	t.Parallel()
	r := New()
	r.Reload([]Route{
		{Name: "fs", UpstreamURL: "http://fs", Enabled: true},
		{Name: "db", UpstreamURL: "http://db", Enabled: false},
	})

	if !r.Exists("fs") || !r.Exists("db") {
		t.Error("expected both services to exist")
	}
	if !r.Enabled("fs") {
		t.Error("expected fs enabled")
	}
	if r.Enabled("db") {
		t.Error("expected db disabled")
	}

	url, ok := r.UpstreamFor("fs")
	if !ok || url != "http://fs" {
		t.Errorf("UpstreamFor(fs) = (%q, %v), want (http://fs, true)", url, ok)
	}
	if _, ok := r.UpstreamFor("db"); ok {
		t.Error("expected UpstreamFor(db) ok=false for disabled service")
	}
}

func TestExists_UnknownServiceIsFalse(t *testing.T) {
	t.Parallel()
	r := New()
	r.Reload([]Route{{Name: "fs", UpstreamURL: "http://fs", Enabled: true}})

	if r.Exists("ghost") {
		t.Error("expected Exists(ghost) = false")
	}
	if r.Enabled("ghost") {
		t.Error("expected Enabled(ghost) = false")
	}
}

func TestReload_ReplacesPreviousContentsEntirely(t *testing.T) {
	t.Parallel()
	r := New()
	r.Reload([]Route{{Name: "old", UpstreamURL: "http://old", Enabled: true}})
	r.Reload([]Route{{Name: "new", UpstreamURL: "http://new", Enabled: true}})

	if r.Exists("old") {
		t.Error("expected old service removed after reload")
	}
	if !r.Exists("new") {
		t.Error("expected new service present after reload")
	}
}

func TestReload_IdempotentWithUnchangedInputs(t *testing.T) {
	t.Parallel()
	r := New()
	routes := []Route{{Name: "fs", UpstreamURL: "http://fs", Enabled: true}}
	r.Reload(routes)
	r.Reload(routes)

	if !r.Enabled("fs") {
		t.Error("expected fs still enabled after a second identical reload")
	}
}
