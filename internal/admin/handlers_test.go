package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func noopAuth(next http.Handler) http.Handler { return next }

type testEnv struct {
	mux http.Handler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := openTestStore(t)
	svc := newTestService(t, st)
	handler := NewAPIHandler(svc, discardLogger())
	return &testEnv{mux: handler.Routes(noopAuth)}
}

func (e *testEnv) doRequest(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v (body=%q)", err, rec.Body.String())
	}
}

func TestHandleListServices_EmptyList(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.doRequest(t, http.MethodGet, "/admin/api/services", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result []serviceResponse
	decodeJSON(t, rec, &result)
	if result == nil {
		t.Fatal("want [], got null")
	}
	if len(result) != 0 {
		t.Fatalf("want 0 services, got %d", len(result))
	}
}

func TestHandleCreateService_SuccessReturns201(t *testing.T) {
	env := setupTestEnv(t)
	srv := fixedUpstream(t, "read")
	defer srv.Close()

	rec := env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "fs", UpstreamURL: srv.URL, Enabled: true, CheckFrequencyMinutes: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result serviceResponse
	decodeJSON(t, rec, &result)
	if result.Name != "fs" {
		t.Errorf("Name = %q, want fs", result.Name)
	}
}

func TestHandleCreateService_PopulatesSnapshotFields(t *testing.T) {
	env := setupTestEnv(t)
	srv := fixedUpstream(t, "read")
	defer srv.Close()

	rec := env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "fs", UpstreamURL: srv.URL, Enabled: true, CheckFrequencyMinutes: 5,
	})
	var result serviceResponse
	decodeJSON(t, rec, &result)
	if result.LatestSnapshotHash == "" {
		t.Error("LatestSnapshotHash is empty, want the hash of the snapshot taken at creation")
	}
	if result.LatestSnapshotStatus == "" {
		t.Error("LatestSnapshotStatus is empty")
	}
}

func TestHandleGetService_ReturnsSingleService(t *testing.T) {
	env := setupTestEnv(t)
	srv := fixedUpstream(t, "read")
	defer srv.Close()

	env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "fs", UpstreamURL: srv.URL, Enabled: true, CheckFrequencyMinutes: 5,
	})

	rec := env.doRequest(t, http.MethodGet, "/admin/api/services/fs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result serviceResponse
	decodeJSON(t, rec, &result)
	if result.Name != "fs" {
		t.Errorf("Name = %q, want fs", result.Name)
	}
	if result.LatestSnapshotHash == "" {
		t.Error("LatestSnapshotHash is empty")
	}
}

func TestHandleGetService_UnknownServiceReturns404(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.doRequest(t, http.MethodGet, "/admin/api/services/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateService_InvalidBodyReturns400(t *testing.T) {
	env := setupTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/services", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateService_DuplicateNameReturns409(t *testing.T) {
	env := setupTestEnv(t)
	srv := fixedUpstream(t, "read")
	defer srv.Close()

	body := createServiceRequest{Name: "fs", UpstreamURL: srv.URL, Enabled: true, CheckFrequencyMinutes: 5}
	env.doRequest(t, http.MethodPost, "/admin/api/services", body)
	rec := env.doRequest(t, http.MethodPost, "/admin/api/services", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePatchService_NotFoundReturns404(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.doRequest(t, http.MethodPut, "/admin/api/services/missing", patchServiceRequest{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleDeleteService_SuccessReturns204(t *testing.T) {
	env := setupTestEnv(t)
	srv := fixedUpstream(t, "read")
	defer srv.Close()

	env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "fs", UpstreamURL: srv.URL, Enabled: true, CheckFrequencyMinutes: 5,
	})
	rec := env.doRequest(t, http.MethodDelete, "/admin/api/services/fs", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleDiff_UnknownServiceReturns404(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.doRequest(t, http.MethodGet, "/admin/api/services/missing/diff", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleClientConfig_ReturnsEnabledOnly(t *testing.T) {
	env := setupTestEnv(t)
	srvA := fixedUpstream(t, "read")
	defer srvA.Close()
	srvB := fixedUpstream(t, "read")
	defer srvB.Close()

	env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "on", UpstreamURL: srvA.URL, Enabled: true, CheckFrequencyMinutes: 5,
	})
	env.doRequest(t, http.MethodPost, "/admin/api/services", createServiceRequest{
		Name: "off", UpstreamURL: srvB.URL, Enabled: false, CheckFrequencyMinutes: 5,
	})

	rec := env.doRequest(t, http.MethodGet, "/admin/api/client-config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result map[string]ClientConfigEntry
	decodeJSON(t, rec, &result)
	if _, ok := result["on"]; !ok {
		t.Error("expected enabled service present")
	}
	if _, ok := result["off"]; ok {
		t.Error("expected disabled service omitted")
	}
}
