// Package gateway implements the Proxy Gateway (C9): a minimal
// net/http/httputil.ReverseProxy-based forwarder that consults the Route
// Registry (C5) on every request and implements the three-way
// unknown/disabled/enabled contract. It has no protocol awareness and
// performs no body inspection; generic transparent forwarding is its whole
// job.
//
// Grounded in shape on
// internal/adapter/inbound/httpgw/reverse_proxy.go's match-then-forward
// split, narrowed from path-prefix multi-target routing down to the single
// registry lookup this proxy needs.
package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/trustgate/trustgate/internal/metrics"
	"github.com/trustgate/trustgate/internal/registry"
)

// Registry is the read-only subset of registry.Registry the gateway needs.
type Registry interface {
	Exists(name string) bool
	Enabled(name string) bool
	UpstreamFor(name string) (string, bool)
}

var _ Registry = (*registry.Registry)(nil)

// Gateway forwards requests under /{service}/mcp to the named service's
// upstream, or rejects with 404/403 per the Registry's current state.
type Gateway struct {
	registry Registry
	logger   *slog.Logger
}

// New builds a Gateway over reg.
func New(reg Registry, logger *slog.Logger) *Gateway {
	return &Gateway{registry: reg, logger: logger}
}

// Routes returns the gateway's http.Handler.
func (g *Gateway) Routes() http.Handler {
	return http.HandlerFunc(g.handle)
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request) {
	name, ok := serviceName(r.URL.Path)
	if !ok || !g.registry.Exists(name) {
		metrics.ProxyRequestsTotal.WithLabelValues("unknown").Inc()
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}

	if !g.registry.Enabled(name) {
		metrics.ProxyRequestsTotal.WithLabelValues("disabled").Inc()
		http.Error(w, "service disabled", http.StatusForbidden)
		return
	}

	upstreamURL, ok := g.registry.UpstreamFor(name)
	if !ok {
		// Enabled() just reported true; a concurrent admin mutation could
		// have disabled the service between the two Registry reads. Treat
		// it the same as "disabled" rather than panicking on a nil target.
		metrics.ProxyRequestsTotal.WithLabelValues("disabled").Inc()
		http.Error(w, "service disabled", http.StatusForbidden)
		return
	}

	target, err := url.Parse(upstreamURL)
	if err != nil {
		g.logger.Error("gateway: invalid upstream URL", "service", name, "upstream_url", upstreamURL, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	metrics.ProxyRequestsTotal.WithLabelValues("forwarded").Inc()
	proxyTo(target).ServeHTTP(w, r)
}

// proxyTo builds a ReverseProxy whose Director replaces the inbound
// /{name}/mcp path with target in full: the registry maps a service
// directly to its upstream's MCP endpoint, so nothing of the inbound path
// beyond routing survives forwarding.
func proxyTo(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = target.Path
			req.URL.RawQuery = target.RawQuery
			req.Host = target.Host
		},
	}
}

// serviceName extracts the service name from a /{name}/mcp path.
func serviceName(path string) (string, bool) {
	trimmed := strings.Trim(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "mcp" {
		return "", false
	}
	return parts[0], true
}
