package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/trustgate/trustgate/internal/registry"
	"github.com/trustgate/trustgate/internal/store"
)

// Poller runs the Registry Poller: it unconditionally reloads the Route
// Registry from the Store on its own interval, and additionally whenever
// Checker signals a change, so admin-path mutations (which don't go
// through Checker) still become visible within one poll interval.
type Poller struct {
	store    *store.Store
	registry *registry.Registry
	interval time.Duration
	signal   Signal
	logger   *slog.Logger
}

// NewPoller builds a Poller sharing signal with a Checker.
func NewPoller(st *store.Store, reg *registry.Registry, interval time.Duration, signal Signal, logger *slog.Logger) *Poller {
	return &Poller{store: st, registry: reg, interval: interval, signal: signal, logger: logger}
}

// Run performs an immediate reload, then blocks reloading on every tick or
// signal until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.Reload(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Reload(ctx)
		case <-p.signal:
			p.Reload(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Reload reads every service from the Store and swaps it into the Route
// Registry. Exported for the initial startup reload and for tests.
func (p *Poller) Reload(ctx context.Context) {
	services, err := p.store.ListServices(ctx)
	if err != nil {
		p.logger.Error("registry poller: list services failed", "error", err)
		return
	}

	routes := make([]registry.Route, len(services))
	for i, svc := range services {
		routes[i] = registry.Route{Name: svc.Name, UpstreamURL: svc.UpstreamURL, Enabled: svc.Enabled}
	}
	p.registry.Reload(routes)
	p.logger.Debug("registry poller: reloaded", "services", len(routes))
}
