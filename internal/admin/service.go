// Package admin implements the Admin Control Plane (C8): thin orchestration
// over the Snapshotter (C3), Store (C4), and Route Registry (C5) that
// reproduces the operator-visible semantics of create/patch/delete/approve/
// diff, plus the client-config and audit-trail read endpoints.
//
// Grounded on original_source/mcp_guardian/app/api/admin_api.py for
// operation sequencing (create-then-snapshot-then-persist
// transactionality) and on diff.py for the diff computation C8 exposes.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trustgate/trustgate/internal/domain/diff"
	"github.com/trustgate/trustgate/internal/domain/service"
	"github.com/trustgate/trustgate/internal/domain/snapshot"
	"github.com/trustgate/trustgate/internal/scheduler"
	"github.com/trustgate/trustgate/internal/snapshotter"
	"github.com/trustgate/trustgate/internal/store"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// diffCacheSize bounds the (old_hash, new_hash) -> Diff LRU. Repeated
// polling of an unchanged pair by an admin dashboard is the common case.
const diffCacheSize = 256

// Service orchestrates the admin-visible operations over C3/C4/C5.
type Service struct {
	store             *store.Store
	snapshotter       *snapshotter.Snapshotter
	registrySignal    scheduler.Signal
	minCheckFrequency int
	baseURL           string
	diffCache         *lru.Cache[uint64, *diff.Diff]
	logger            *slog.Logger
}

// New builds a Service. registrySignal is the same channel shared between
// the Check Scheduler (C6) and the Registry Poller (C7); every mutating
// operation here notifies it so C7 rebuilds the Registry without waiting
// for its next tick, while remaining the Registry's only writer.
func New(st *store.Store, snap *snapshotter.Snapshotter, registrySignal scheduler.Signal, minCheckFrequency int, baseURL string, logger *slog.Logger) (*Service, error) {
	cache, err := lru.New[uint64, *diff.Diff](diffCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create diff cache: %w", err)
	}
	return &Service{
		store:             st,
		snapshotter:       snap,
		registrySignal:    registrySignal,
		minCheckFrequency: minCheckFrequency,
		baseURL:           baseURL,
		diffCache:         cache,
		logger:            logger,
	}, nil
}

// CreateInput is the operator-supplied input to Create.
type CreateInput struct {
	Name                  string
	UpstreamURL           string
	Enabled               bool
	CheckFrequencyMinutes int
}

// Create validates name and snapshots the upstream before persisting
// anything; if the snapshot RPC fails, nothing is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (*service.Service, error) {
	svc := &service.Service{
		Name:                  in.Name,
		UpstreamURL:           in.UpstreamURL,
		Enabled:               in.Enabled,
		CheckFrequencyMinutes: in.CheckFrequencyMinutes,
	}
	if err := svc.Validate(s.minCheckFrequency); err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindConfig, "invalid service", err)
	}

	result, err := s.snapshotter.Take(ctx, svc.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s before create: %w", svc.UpstreamURL, err)
	}

	created, _, err := s.store.CreateService(ctx, svc, result.CanonicalJSON, result.Hash)
	if err != nil {
		return nil, err
	}

	s.registrySignal.Notify()
	s.logger.Info("admin: service created", "service", created.Name, "hash", result.Hash)
	return created, nil
}

// PatchInput is the operator-supplied partial update to Patch.
type PatchInput struct {
	UpstreamURL           *string
	Enabled               *bool
	CheckFrequencyMinutes *int
}

// Patch applies a partial update. When the upstream URL changes, the new
// URL is snapshotted first and the result persisted as an UNAPPROVED
// snapshot with the service forced disabled, regardless of the requested
// Enabled value: a new URL is an unvetted endpoint until someone approves
// what it serves.
func (s *Service) Patch(ctx context.Context, name string, in PatchInput) (*service.Service, error) {
	current, err := s.store.GetServiceByName(ctx, name)
	if err != nil {
		return nil, err
	}

	patch := service.Patch{UpstreamURL: in.UpstreamURL, Enabled: in.Enabled, CheckFrequencyMinutes: in.CheckFrequencyMinutes}

	preview := *current
	patch.Apply(&preview)
	if err := preview.Validate(s.minCheckFrequency); err != nil {
		return nil, trustgateerr.Wrap(trustgateerr.KindConfig, "invalid patch", err)
	}

	var fresh *store.FreshSnapshot
	if patch.ChangesUpstreamURL(current.UpstreamURL) {
		result, err := s.snapshotter.Take(ctx, preview.UpstreamURL)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s before update: %w", preview.UpstreamURL, err)
		}
		fresh = &store.FreshSnapshot{CanonicalJSON: result.CanonicalJSON, Hash: result.Hash}
	}

	updated, err := s.store.UpdateService(ctx, name, patch, fresh)
	if err != nil {
		return nil, err
	}

	s.registrySignal.Notify()
	s.logger.Info("admin: service updated", "service", updated.Name, "url_changed", fresh != nil)
	return updated, nil
}

// Delete removes the named service.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.DeleteService(ctx, name); err != nil {
		return err
	}
	s.registrySignal.Notify()
	s.logger.Info("admin: service deleted", "service", name)
	return nil
}

// ApproveLatest promotes the named service's latest snapshot to
// USER_APPROVED and enables it.
func (s *Service) ApproveLatest(ctx context.Context, name string) (*snapshot.Snapshot, error) {
	snap, err := s.store.ApproveLatest(ctx, name)
	if err != nil {
		return nil, err
	}
	s.registrySignal.Notify()
	s.logger.Info("admin: latest snapshot approved", "service", name, "hash", snap.Hash)
	return snap, nil
}

// Diff compares the named service's latest approved snapshot against its
// latest snapshot (which may be the same row, or may itself be
// unapproved). Results are cached by the (old_hash, new_hash) pair.
func (s *Service) Diff(ctx context.Context, name string) (*diff.Diff, error) {
	svc, err := s.store.GetServiceByName(ctx, name)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestSnapshot(ctx, svc.ID)
	if err != nil {
		return nil, err
	}
	approved, err := s.store.LatestApprovedSnapshot(ctx, svc.ID)
	if err != nil {
		return nil, err
	}

	if approved.ID == latest.ID {
		return nil, nil
	}

	key := cacheKey(approved.Hash, latest.Hash)
	if cached, ok := s.diffCache.Get(key); ok {
		return cached, nil
	}

	d, err := diff.Compute(approved.CanonicalJSON, latest.CanonicalJSON)
	if err != nil {
		return nil, fmt.Errorf("compute diff for service %s: %w", name, err)
	}
	s.diffCache.Add(key, d)
	return d, nil
}

// GetService returns the named service.
func (s *Service) GetService(ctx context.Context, name string) (*service.Service, error) {
	return s.store.GetServiceByName(ctx, name)
}

// ListServices returns every registered service.
func (s *Service) ListServices(ctx context.Context) ([]service.Service, error) {
	return s.store.ListServices(ctx)
}

// ClientConfigEntry is one entry of the client-config snippet response.
type ClientConfigEntry struct {
	URL string `json:"url"`
}

// ClientConfig returns the {name: {url}} snippet for every enabled
// service. Disabled services are omitted since they refuse traffic at
// the gateway and have no connectable URL to advertise.
func (s *Service) ClientConfig(ctx context.Context) (map[string]ClientConfigEntry, error) {
	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ClientConfigEntry, len(services))
	for _, svc := range services {
		if !svc.Enabled {
			continue
		}
		out[svc.Name] = ClientConfigEntry{URL: s.baseURL + "/" + svc.Name + "/mcp"}
	}
	return out, nil
}

// AuditTrail returns the named service's audit_log rows, oldest first.
func (s *Service) AuditTrail(ctx context.Context, name string) ([]store.AuditEntry, error) {
	svc, err := s.store.GetServiceByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.store.AuditLog(ctx, svc.ID)
}

func cacheKey(oldHash, newHash string) uint64 {
	return xxhash.Sum64String(oldHash + ":" + newHash)
}
