package manager

import (
	"context"
	"fmt"

	"github.com/realmkeep/realmkeep/pkg/config"
	"github.com/realmkeep/realmkeep/pkg/events"
	"github.com/realmkeep/realmkeep/pkg/keycloak"
	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/snapshot"
	"github.com/realmkeep/realmkeep/pkg/storage"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Manager wires configuration, the storage backend and the registered
// services into a ready-to-use snapshot manager. It is the single
// entrypoint the API server and the CLI share.
type Manager struct {
	cfg       *config.Config
	backend   storage.Backend
	keycloak  *keycloak.Service
	snapshots *snapshot.Manager
	collector *metrics.Collector
	broker    *events.Broker
}

// New builds a manager from configuration.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	backend, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
		return nil, err
	}
	metrics.RegisterComponent("storage", true, "")

	kc, err := keycloak.NewService(cfg.Keycloak)
	if err != nil {
		metrics.RegisterComponent("keycloak", false, err.Error())
		return nil, err
	}
	metrics.RegisterComponent("keycloak", true, "")

	broker := events.NewBroker()
	broker.Start()
	snapshots := snapshot.NewManager(backend, kc).WithEvents(broker)

	logger := log.WithComponent("manager")
	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("realm", cfg.Keycloak.Auth.Realm).
		Msg("manager initialized")

	return &Manager{
		cfg:       cfg,
		backend:   backend,
		keycloak:  kc,
		snapshots: snapshots,
		collector: metrics.NewCollector(snapshots),
		broker:    broker,
	}, nil
}

// Events returns the lifecycle event broker.
func (m *Manager) Events() *events.Broker {
	return m.broker
}

// Close releases background resources.
func (m *Manager) Close() {
	m.broker.Stop()
}

// Config returns the loaded configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Snapshots returns the snapshot manager.
func (m *Manager) Snapshots() *snapshot.Manager {
	return m.snapshots
}

// StartCollector begins periodic snapshot-inventory metric collection.
func (m *Manager) StartCollector() {
	m.collector.Start()
}

// StopCollector stops the collector.
func (m *Manager) StopCollector() {
	m.collector.Stop()
}

// Backup runs a backup per the given options; an empty service name
// selects every service.
func (m *Manager) Backup(ctx context.Context, opts snapshot.BackupOptions) (*types.BackupResult, error) {
	return m.snapshots.Backup(ctx, opts)
}

// Restore imports a snapshot into the live realm.
func (m *Manager) Restore(ctx context.Context, snapshotID, serviceName string) (map[string]*types.RestoreResult, error) {
	return m.snapshots.Restore(ctx, snapshotID, serviceName)
}

// Plan produces the dry-run diff for a snapshot.
func (m *Manager) Plan(ctx context.Context, snapshotID, serviceName string) (map[string]*types.RestorePlan, error) {
	return m.snapshots.Plan(ctx, snapshotID, serviceName)
}

// List returns snapshot summaries, newest first.
func (m *Manager) List(ctx context.Context) ([]types.SnapshotSummary, error) {
	return m.snapshots.List(ctx)
}

// Info returns the manifest of one snapshot.
func (m *Manager) Info(ctx context.Context, snapshotID string) (*types.Manifest, error) {
	return m.snapshots.Manifest(ctx, snapshotID)
}

// ExportKind captures one live kind of one service without writing a
// snapshot.
func (m *Manager) ExportKind(ctx context.Context, serviceName, kind string) (*types.Artifact, error) {
	if serviceName != keycloak.ServiceName {
		return nil, fmt.Errorf("%w: service %q", types.ErrNotFound, serviceName)
	}
	return m.keycloak.ExportKind(ctx, kind)
}

// ImportKind pushes entities of one kind into one service's live realm.
func (m *Manager) ImportKind(ctx context.Context, serviceName, kind string, entities []types.Entity) (*types.KindReport, error) {
	if serviceName != keycloak.ServiceName {
		return nil, fmt.Errorf("%w: service %q", types.ErrNotFound, serviceName)
	}
	return m.keycloak.ImportKind(ctx, kind, entities)
}
