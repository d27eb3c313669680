package keycloak

import (
	"context"

	"github.com/realmkeep/realmkeep/pkg/diff"
	"github.com/realmkeep/realmkeep/pkg/planner"
	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// ServiceName is the registered name of the Keycloak service.
const ServiceName = "keycloak"

// Config is the Keycloak section of the service configuration.
type Config struct {
	Auth Auth `yaml:"auth" json:"auth"`
}

// Service bundles the Keycloak client, kind registry, exporter and
// importer behind the interface the snapshot manager drives.
type Service struct {
	client   *Client
	registry *schema.Registry
	exporter *Exporter
	importer *Importer
}

// NewService validates the config and wires up the service.
func NewService(cfg Config) (*Service, error) {
	client, err := NewClient(cfg.Auth)
	if err != nil {
		return nil, err
	}
	registry := schema.NewKeycloakRegistry()
	return &Service{
		client:   client,
		registry: registry,
		exporter: NewExporter(client, registry),
		importer: NewImporter(client, registry),
	}, nil
}

// Name returns the service name.
func (s *Service) Name() string {
	return ServiceName
}

// Meta describes the service for snapshot manifests. Data lists the kinds
// in planner order.
func (s *Service) Meta() types.ServiceMeta {
	meta := types.ServiceMeta{
		Type:     "Serial",
		Version:  "1.0",
		Priority: 10,
	}
	if ordered, err := planner.Order(s.registry); err == nil {
		meta.Data = planner.Names(ordered)
	}
	return meta
}

// Registry exposes the kind descriptors, read-only.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// Export captures all kinds from the live realm.
func (s *Service) Export(ctx context.Context) (map[string]*types.Artifact, bool, error) {
	return s.exporter.ExportAll(ctx)
}

// ExportKind captures one kind from the live realm.
func (s *Service) ExportKind(ctx context.Context, kind string) (*types.Artifact, error) {
	return s.exporter.ExportKind(ctx, kind)
}

// Import creates the artifact entities in the live realm.
func (s *Service) Import(ctx context.Context, artifacts map[string]*types.Artifact) (map[string]*types.KindReport, error) {
	return s.importer.ImportAll(ctx, artifacts)
}

// ImportKind creates the entities of one kind in the live realm.
func (s *Service) ImportKind(ctx context.Context, kind string, entities []types.Entity) (*types.KindReport, error) {
	return s.importer.ImportKind(ctx, kind, entities)
}

// Plan diffs snapshot artifacts against the live realm without mutating
// it. Kinds whose snapshot artifact recorded an export failure are
// omitted; kinds in the plan follow planner order.
func (s *Service) Plan(ctx context.Context, artifacts map[string]*types.Artifact) ([]types.KindPlan, error) {
	ordered, err := planner.Order(s.registry)
	if err != nil {
		return nil, err
	}

	var plans []types.KindPlan
	for _, d := range ordered {
		artifact, ok := artifacts[d.Name]
		if !ok || artifact.Failed() {
			continue
		}

		live, err := s.exporter.ExportKind(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		if live.Failed() {
			return nil, &types.StatusError{Status: live.Status, Body: live.Error}
		}

		snapshot, err := canonicalAll(d, artifact.Result)
		if err != nil {
			return nil, err
		}
		plans = append(plans, diff.Kind(d, snapshot, live.Result))
	}
	return plans, nil
}

func canonicalAll(d *schema.Descriptor, entities []types.Entity) ([]types.Entity, error) {
	out := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		c, err := d.Canonical(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
