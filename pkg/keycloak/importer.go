package keycloak

import (
	"context"
	"errors"
	"fmt"

	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/planner"
	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Importer creates snapshot entities in a live realm, kind by kind in
// planner order so prerequisites exist before their dependents.
type Importer struct {
	client   *Client
	registry *schema.Registry
}

// NewImporter creates an importer over the given client and kind set.
func NewImporter(client *Client, registry *schema.Registry) *Importer {
	return &Importer{client: client, registry: registry}
}

// ImportAll imports every kind present in artifacts, in planner order.
// Per-item failures follow the conflict policy of importKind; when a kind
// aborts, kinds depending on it are marked skipped and independent
// branches continue.
func (i *Importer) ImportAll(ctx context.Context, artifacts map[string]*types.Artifact) (map[string]*types.KindReport, error) {
	ordered, err := planner.Order(i.registry)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]*types.KindReport, len(ordered))
	aborted := make(map[string]bool, len(ordered))

	for _, d := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		artifact, ok := artifacts[d.Name]
		if !ok {
			continue
		}

		if dep := i.failedDependency(d, aborted); dep != "" {
			reports[d.Name] = &types.KindReport{
				Skipped: len(artifact.Result),
				Reason:  fmt.Sprintf("dependency failed: %s", dep),
			}
			aborted[d.Name] = true
			continue
		}

		report := i.importKind(ctx, d, artifact.Result)
		reports[d.Name] = report
		if report.Reason != "" {
			aborted[d.Name] = true
		}
	}
	return reports, nil
}

// ImportKind imports a single named kind, for one-shot restores.
func (i *Importer) ImportKind(ctx context.Context, kind string, entities []types.Entity) (*types.KindReport, error) {
	d, err := i.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return i.importKind(ctx, d, entities), nil
}

// failedDependency returns the first dependency (transitively aborted or
// skipped) blocking the kind, or "".
func (i *Importer) failedDependency(d *schema.Descriptor, aborted map[string]bool) string {
	for _, dep := range d.DependsOn {
		if aborted[dep] {
			return dep
		}
	}
	return ""
}

// importKind posts each entity in document order. 409 counts as existing,
// other 4xx isolate the entity, 5xx and transport errors abort the rest
// of the kind.
func (i *Importer) importKind(ctx context.Context, d *schema.Descriptor, entities []types.Entity) *types.KindReport {
	logger := log.WithKind(d.Name)
	report := &types.KindReport{}

	for idx, raw := range entities {
		entity, err := d.Canonical(raw)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, types.ImportFailure{
				Identity: d.Identity(raw),
				Error:    err.Error(),
			})
			continue
		}
		identity := d.Identity(entity)

		err = i.client.Post(ctx, d.CreateEndpoint, entity)
		if err == nil {
			report.Created++
			continue
		}

		status := types.StatusOf(err)
		switch {
		case status == 409:
			logger.Info().Str("identity", identity).Msg("entity already exists")
			report.Existing++
		case status >= 400 && status < 500:
			logger.Warn().Str("identity", identity).Err(err).Msg("entity rejected")
			report.Failed++
			report.Failures = append(report.Failures, types.ImportFailure{
				Identity: identity,
				Error:    fmt.Sprintf("%v: %v", types.ErrInvalidEntity, err),
				Status:   status,
			})
		default:
			// 5xx, transport failure or cancellation: the provider is
			// unhealthy, stop hammering this kind.
			logger.Error().Str("identity", identity).Err(err).Msg("import aborted")
			report.Failed++
			report.Failures = append(report.Failures, types.ImportFailure{
				Identity: identity,
				Error:    err.Error(),
				Status:   status,
			})
			report.Skipped += len(entities) - idx - 1
			report.Reason = abortReason(err)
			observeImport(d.Name, report)
			return report
		}
	}

	observeImport(d.Name, report)
	logger.Info().
		Int("created", report.Created).
		Int("existing", report.Existing).
		Int("failed", report.Failed).
		Msg("import completed")
	return report
}

func observeImport(kind string, report *types.KindReport) {
	metrics.EntitiesImported.WithLabelValues(kind, string(types.ItemCreated)).Add(float64(report.Created))
	metrics.EntitiesImported.WithLabelValues(kind, string(types.ItemExisting)).Add(float64(report.Existing))
	metrics.EntitiesImported.WithLabelValues(kind, string(types.ItemFailed)).Add(float64(report.Failed))
	metrics.EntitiesImported.WithLabelValues(kind, string(types.ItemSkipped)).Add(float64(report.Skipped))
}

func abortReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if status := types.StatusOf(err); status != 0 {
		return fmt.Sprintf("provider returned %d", status)
	}
	return "transport failure"
}
