// Package scheduler implements the Check Scheduler (C6) and Registry
// Poller (C7): two independent long-lived workers connected by a
// dirty-coalescing signal channel, grounded on
// original_source/mcp_guardian/app/scheduler/check_scheduler.py and
// route_poller.py's tick loops.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/trustgate/trustgate/internal/domain/service"
	"github.com/trustgate/trustgate/internal/domain/snapshot"
	"github.com/trustgate/trustgate/internal/metrics"
	"github.com/trustgate/trustgate/internal/snapshotter"
	"github.com/trustgate/trustgate/internal/store"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

// Checker runs the Check Scheduler: each tick, it re-snapshots every due
// enabled service and records the approval decision.
type Checker struct {
	store       *store.Store
	snapshotter *snapshotter.Snapshotter
	interval    time.Duration
	signal      Signal
	logger      *slog.Logger
	now         func() time.Time
}

// NewChecker builds a Checker. signal is shared with a Poller so C6 can
// wake C7 immediately after a tick that flipped an enabled flag.
func NewChecker(st *store.Store, snap *snapshotter.Snapshotter, interval time.Duration, signal Signal, logger *slog.Logger) *Checker {
	return &Checker{store: st, snapshotter: snap, interval: interval, signal: signal, logger: logger, now: time.Now}
}

// Run blocks, ticking every c.interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick performs one scheduler pass: load candidate services, check the due
// ones, and signal C7 if any enabled flag flipped. Exported so tests can
// drive a single pass deterministically.
func (c *Checker) Tick(ctx context.Context) {
	services, err := c.store.ListServices(ctx)
	if err != nil {
		c.logger.Error("check scheduler: list services failed", "error", err)
		return
	}

	dirty := false
	for i := range services {
		svc := &services[i]
		if !svc.Enabled || svc.CheckFrequencyMinutes <= 0 {
			continue
		}

		due, err := c.isDue(ctx, svc)
		if err != nil {
			c.logger.Error("check scheduler: read last snapshot failed", "service", svc.Name, "error", err)
			continue
		}
		if !due {
			continue
		}

		c.logger.Info("check scheduler: service due", "service", svc.Name)
		if c.checkService(ctx, svc) {
			dirty = true
		}
	}

	if dirty {
		c.logger.Info("check scheduler: enabled flags changed, signaling registry poller")
		c.signal.Notify()
	}
}

// isDue reports whether svc has gone at least CheckFrequencyMinutes since
// its most recent snapshot (of any approval status). A service with no
// snapshot at all is due.
func (c *Checker) isDue(ctx context.Context, svc *service.Service) (bool, error) {
	last, err := c.store.LatestSnapshot(ctx, svc.ID)
	if trustgateerr.Is(err, trustgateerr.KindNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	elapsed := c.now().Sub(last.CreatedAt)
	return elapsed >= time.Duration(svc.CheckFrequencyMinutes)*time.Minute, nil
}

// checkService re-snapshots svc and records the result. It returns true iff
// the service's enabled flag changed. A snapshot failure (unreachable,
// timeout, malformed response — any error from Take) is logged and
// skipped: no row is written and enabled is left untouched, per spec.md
// §4.6's "refuses to confuse upstream flaky with upstream mutated."
func (c *Checker) checkService(ctx context.Context, svc *service.Service) bool {
	result, err := c.snapshotter.Take(ctx, svc.UpstreamURL)
	if err != nil {
		c.logger.Warn("check scheduler: snapshot failed, skipping this tick", "service", svc.Name, "error", err)
		metrics.ChecksTotal.WithLabelValues("skipped_error").Inc()
		return false
	}

	approved, err := c.store.LatestApprovedSnapshot(ctx, svc.ID)
	var status snapshot.ApprovalStatus
	var enabled bool
	var outcome string
	switch {
	case trustgateerr.Is(err, trustgateerr.KindNotFound):
		status, enabled, outcome = snapshot.Unapproved, false, "first_unapproved"
	case err != nil:
		c.logger.Error("check scheduler: read latest approved snapshot failed", "service", svc.Name, "error", err)
		return false
	case result.Hash == approved.Hash:
		status, enabled, outcome = snapshot.SystemApproved, svc.Enabled, "unchanged"
	default:
		status, enabled, outcome = snapshot.Unapproved, false, "diverged"
	}

	_, changed, err := c.store.RecordCheck(ctx, svc.ID, result.CanonicalJSON, result.Hash, status, enabled)
	if err != nil {
		c.logger.Error("check scheduler: record check failed", "service", svc.Name, "error", err)
		return false
	}

	metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	c.logger.Info("check scheduler: check complete", "service", svc.Name, "outcome", outcome, "hash", result.Hash)
	return changed
}
