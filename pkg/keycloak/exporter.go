package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/planner"
	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Exporter fetches live realm collections kind by kind and canonicalises
// them into snapshot artifacts.
type Exporter struct {
	client   *Client
	registry *schema.Registry
}

// NewExporter creates an exporter over the given client and kind set.
func NewExporter(client *Client, registry *schema.Registry) *Exporter {
	return &Exporter{client: client, registry: registry}
}

// ExportAll exports every kind in planner order. Per-kind failures are
// isolated into error artifacts; the boolean reports whether any kind
// degraded. Only cancellation and planner errors abort the export.
func (e *Exporter) ExportAll(ctx context.Context) (map[string]*types.Artifact, bool, error) {
	ordered, err := planner.Order(e.registry)
	if err != nil {
		return nil, false, err
	}

	artifacts := make(map[string]*types.Artifact, len(ordered))
	degraded := false
	for _, d := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		artifact := e.exportKind(ctx, d)
		if artifact.Failed() {
			degraded = true
		}
		artifacts[d.Name] = artifact
	}
	return artifacts, degraded, nil
}

// ExportKind exports a single named kind, for ad-hoc inspection.
func (e *Exporter) ExportKind(ctx context.Context, kind string) (*types.Artifact, error) {
	d, err := e.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return e.exportKind(ctx, d), nil
}

func (e *Exporter) exportKind(ctx context.Context, d *schema.Descriptor) *types.Artifact {
	logger := log.WithKind(d.Name)
	logger.Debug().Str("endpoint", d.ListEndpoint).Msg("exporting")

	var raw []types.Entity
	if err := e.client.Get(ctx, d.ListEndpoint, &raw); err != nil {
		logger.Error().Err(err).Msg("export failed")
		return errorArtifact(d.Name, err)
	}

	seen := make(map[string]struct{}, len(raw))
	result := make([]types.Entity, 0, len(raw))
	for _, item := range raw {
		entity, err := d.Canonical(item)
		if err != nil {
			logger.Error().Err(err).Msg("export failed")
			return errorArtifact(d.Name, err)
		}
		id := d.Identity(entity)
		if id == "" {
			err := fmt.Errorf("%w: %s entity has empty identity", types.ErrInvalidEntity, d.Name)
			logger.Error().Err(err).Msg("export failed")
			return errorArtifact(d.Name, err)
		}
		if _, dup := seen[id]; dup {
			err := fmt.Errorf("%w: duplicate %s identity %q", types.ErrInvalidEntity, d.Name, id)
			logger.Error().Err(err).Msg("export failed")
			return errorArtifact(d.Name, err)
		}
		seen[id] = struct{}{}
		result = append(result, entity)
	}

	metrics.EntitiesExported.WithLabelValues(d.Name).Add(float64(len(result)))
	logger.Info().Int("count", len(result)).Msg("export completed")
	return &types.Artifact{
		Message: fmt.Sprintf("Export %s completed successfully", d.Name),
		Result:  result,
	}
}

// errorArtifact records a per-kind failure so a partial snapshot can still
// be produced.
func errorArtifact(kind string, err error) *types.Artifact {
	status := types.StatusOf(err)
	if status == 0 {
		switch {
		case errors.Is(err, types.ErrPermissionDenied):
			status = http.StatusForbidden
		default:
			status = http.StatusInternalServerError
		}
	}
	return &types.Artifact{
		Result: []types.Entity{},
		Error:  fmt.Sprintf("Failed to export %s: %v", kind, err),
		Status: status,
	}
}
