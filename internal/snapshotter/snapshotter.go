// Package snapshotter implements the Snapshotter (C3): it drives the MCP
// Client through the initialize handshake and the four capability-family
// list calls, then hands the results to the Canonicalizer to produce a
// hash-stamped Result.
//
// Grounded on original_source/mcp_guardian/app/services/snapshotter.py's
// take_snapshot four-call sequence.
package snapshotter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustgate/trustgate/internal/canon"
	"github.com/trustgate/trustgate/internal/mcpclient"
	"github.com/trustgate/trustgate/internal/metrics"
)

// Result is the outcome of taking one snapshot of an upstream's capability
// surface.
type Result struct {
	CanonicalJSON     string
	Hash              string
	Tools             []json.RawMessage
	Resources         []json.RawMessage
	ResourceTemplates []json.RawMessage
	Prompts           []json.RawMessage
}

// Snapshotter drives an mcpclient.Client through one full capability
// snapshot of an upstream MCP server.
type Snapshotter struct {
	client *mcpclient.Client
	tracer trace.Tracer
	filter canon.VolatileFilter
	logger *slog.Logger
}

// New builds a Snapshotter. filter may be nil (no volatile-field stripping).
func New(client *mcpclient.Client, tracer trace.Tracer, filter canon.VolatileFilter, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{client: client, tracer: tracer, filter: filter, logger: logger}
}

// Take performs the initialize handshake and the four list walks against
// upstreamURL, then canonicalizes and hashes the combined result.
func (s *Snapshotter) Take(ctx context.Context, upstreamURL string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "trustgate.snapshot.take")
	defer span.End()
	span.SetAttributes(attribute.String("trustgate.upstream_url", upstreamURL))

	if _, err := s.callTraced(ctx, "initialize", func(ctx context.Context) (json.RawMessage, error) {
		return s.client.Initialize(ctx, upstreamURL)
	}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("initialize %s: %w", upstreamURL, err)
	}

	tools, err := s.listTraced(ctx, "tools", func(ctx context.Context) ([]json.RawMessage, error) {
		return s.client.ListTools(ctx, upstreamURL)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list tools from %s: %w", upstreamURL, err)
	}

	resources, err := s.listTraced(ctx, "resources", func(ctx context.Context) ([]json.RawMessage, error) {
		return s.client.ListResources(ctx, upstreamURL)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list resources from %s: %w", upstreamURL, err)
	}

	resourceTemplates, err := s.listTraced(ctx, "resource_templates", func(ctx context.Context) ([]json.RawMessage, error) {
		return s.client.ListResourceTemplates(ctx, upstreamURL)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list resource templates from %s: %w", upstreamURL, err)
	}

	prompts, err := s.listTraced(ctx, "prompts", func(ctx context.Context) ([]json.RawMessage, error) {
		return s.client.ListPrompts(ctx, upstreamURL)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list prompts from %s: %w", upstreamURL, err)
	}

	lists := canon.Lists{
		Tools:             tools,
		Resources:         resources,
		ResourceTemplates: resourceTemplates,
		Prompts:           prompts,
	}

	canonicalJSON, hash, err := canon.Fingerprint(lists, s.filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("canonicalize snapshot of %s: %w", upstreamURL, err)
	}

	span.SetAttributes(attribute.String("trustgate.snapshot_hash", hash))
	s.logger.Info("snapshot complete", "upstream_url", upstreamURL, "hash", hash,
		"tools", len(tools), "resources", len(resources),
		"resource_templates", len(resourceTemplates), "prompts", len(prompts))

	return &Result{
		CanonicalJSON:     canonicalJSON,
		Hash:              hash,
		Tools:             tools,
		Resources:         resources,
		ResourceTemplates: resourceTemplates,
		Prompts:           prompts,
	}, nil
}

// callTraced wraps a single outbound call in a child span and a duration
// observation keyed by method.
func (s *Snapshotter) callTraced(ctx context.Context, method string, call func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "trustgate.snapshot."+method)
	defer span.End()

	start := time.Now()
	result, err := call(ctx)
	metrics.SnapshotDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// listTraced wraps one capability-family list call in a child span, a
// duration observation, and an item-count histogram observation.
func (s *Snapshotter) listTraced(ctx context.Context, family string, call func(context.Context) ([]json.RawMessage, error)) ([]json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "trustgate.snapshot."+family)
	defer span.End()

	start := time.Now()
	items, err := call(ctx)
	metrics.SnapshotDuration.WithLabelValues(family).Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.SnapshotItems.WithLabelValues(family).Observe(float64(len(items)))
	span.SetAttributes(attribute.Int("trustgate.item_count", len(items)))
	return items, nil
}
