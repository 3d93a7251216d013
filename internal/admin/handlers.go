package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trustgate/trustgate/internal/domain/service"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// APIHandler exposes Service over a JSON HTTP surface.
type APIHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewAPIHandler builds an APIHandler.
func NewAPIHandler(svc *Service, logger *slog.Logger) *APIHandler {
	return &APIHandler{service: svc, logger: logger}
}

// Routes returns the admin API's http.Handler. authMiddleware wraps every
// route except none; the admin API has no unauthenticated endpoints.
func (h *APIHandler) Routes(authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/api/services", h.handleListServices)
	mux.HandleFunc("POST /admin/api/services", h.handleCreateService)
	mux.HandleFunc("GET /admin/api/services/{name}", h.handleGetService)
	mux.HandleFunc("PUT /admin/api/services/{name}", h.handlePatchService)
	mux.HandleFunc("DELETE /admin/api/services/{name}", h.handleDeleteService)
	mux.HandleFunc("POST /admin/api/services/{name}/approve", h.handleApproveLatest)
	mux.HandleFunc("GET /admin/api/services/{name}/diff", h.handleDiff)
	mux.HandleFunc("GET /admin/api/services/{name}/audit", h.handleAuditTrail)
	mux.HandleFunc("GET /admin/api/client-config", h.handleClientConfig)

	return authMiddleware(mux)
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a trustgateerr.Error to an HTTP status, falling
// back to 500 for anything it does not specifically recognize.
func (h *APIHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case trustgateerr.Is(err, trustgateerr.KindNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case trustgateerr.Is(err, trustgateerr.KindConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case trustgateerr.Is(err, trustgateerr.KindConfig):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case trustgateerr.Is(err, trustgateerr.KindUpstreamUnreachable),
		trustgateerr.Is(err, trustgateerr.KindProtocol),
		trustgateerr.Is(err, trustgateerr.KindRPC),
		trustgateerr.Is(err, trustgateerr.KindMethodNotFound):
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("admin API internal error", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// serviceResponse is the JSON representation of a service.Service. Every
// response carries the service identity, its enabled flag, and its latest
// snapshot/approval state so a dashboard can render status without a
// separate diff call.
type serviceResponse struct {
	Name                  string `json:"name"`
	UpstreamURL           string `json:"upstream_url"`
	Enabled               bool   `json:"enabled"`
	CheckFrequencyMinutes int    `json:"check_frequency_minutes"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
	LatestSnapshotHash    string `json:"latest_snapshot_hash"`
	LatestSnapshotStatus  string `json:"latest_snapshot_status"`
	LatestApprovedHash    string `json:"latest_approved_hash"`
}

// toServiceResponse enriches svc with its latest-snapshot and
// latest-approved-snapshot state. A service with no snapshot yet (should
// not happen outside of tests, since Create always takes one) leaves those
// fields blank rather than failing the whole response.
func (h *APIHandler) toServiceResponse(ctx context.Context, svc *service.Service) serviceResponse {
	resp := serviceResponse{
		Name:                  svc.Name,
		UpstreamURL:           svc.UpstreamURL,
		Enabled:               svc.Enabled,
		CheckFrequencyMinutes: svc.CheckFrequencyMinutes,
		CreatedAt:             svc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:             svc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if latest, err := h.service.store.LatestSnapshot(ctx, svc.ID); err == nil {
		resp.LatestSnapshotHash = latest.Hash
		resp.LatestSnapshotStatus = string(latest.ApprovedStatus)
	} else if !trustgateerr.Is(err, trustgateerr.KindNotFound) {
		h.logger.Error("lookup latest snapshot", "service", svc.Name, "error", err)
	}

	if approved, err := h.service.store.LatestApprovedSnapshot(ctx, svc.ID); err == nil {
		resp.LatestApprovedHash = approved.Hash
	} else if !trustgateerr.Is(err, trustgateerr.KindNotFound) {
		h.logger.Error("lookup latest approved snapshot", "service", svc.Name, "error", err)
	}

	return resp
}

// GET /admin/api/services
func (h *APIHandler) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for i := range services {
		out = append(out, h.toServiceResponse(r.Context(), &services[i]))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GET /admin/api/services/{name}
func (h *APIHandler) handleGetService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	svc, err := h.service.GetService(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.toServiceResponse(r.Context(), svc))
}

// createServiceRequest is the JSON body for POST /admin/api/services.
type createServiceRequest struct {
	Name                  string `json:"name"`
	UpstreamURL           string `json:"upstream_url"`
	Enabled               bool   `json:"enabled"`
	CheckFrequencyMinutes int    `json:"check_frequency_minutes"`
}

// POST /admin/api/services
func (h *APIHandler) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.service.Create(r.Context(), CreateInput{
		Name:                  strings.TrimSpace(req.Name),
		UpstreamURL:           req.UpstreamURL,
		Enabled:               req.Enabled,
		CheckFrequencyMinutes: req.CheckFrequencyMinutes,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, h.toServiceResponse(r.Context(), created))
}

// patchServiceRequest is the JSON body for PUT /admin/api/services/{name}.
// Pointer fields distinguish "not supplied" from the zero value.
type patchServiceRequest struct {
	UpstreamURL           *string `json:"upstream_url"`
	Enabled               *bool   `json:"enabled"`
	CheckFrequencyMinutes *int    `json:"check_frequency_minutes"`
}

// PUT /admin/api/services/{name}
func (h *APIHandler) handlePatchService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req patchServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := h.service.Patch(r.Context(), name, PatchInput{
		UpstreamURL:           req.UpstreamURL,
		Enabled:               req.Enabled,
		CheckFrequencyMinutes: req.CheckFrequencyMinutes,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.toServiceResponse(r.Context(), updated))
}

// DELETE /admin/api/services/{name}
func (h *APIHandler) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.Delete(r.Context(), name); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snapshotResponse is the JSON representation of an approved snapshot.
type snapshotResponse struct {
	Hash           string `json:"hash"`
	ApprovedStatus string `json:"approved_status"`
}

// POST /admin/api/services/{name}/approve
func (h *APIHandler) handleApproveLatest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	snap, err := h.service.ApproveLatest(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, snapshotResponse{
		Hash:           snap.Hash,
		ApprovedStatus: string(snap.ApprovedStatus),
	})
}

// GET /admin/api/services/{name}/diff
func (h *APIHandler) handleDiff(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	d, err := h.service.Diff(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"diff": d})
}

// GET /admin/api/services/{name}/audit
func (h *APIHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	entries, err := h.service.AuditTrail(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entries)
}

// GET /admin/api/client-config
func (h *APIHandler) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ClientConfig(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cfg)
}
