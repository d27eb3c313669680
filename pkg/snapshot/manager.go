package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/realmkeep/realmkeep/pkg/archive"
	"github.com/realmkeep/realmkeep/pkg/events"
	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/storage"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Service is one backed-up system. The Keycloak service is the only
// implementation today; the manager stays agnostic of what it exports.
type Service interface {
	Name() string
	Meta() types.ServiceMeta
	Export(ctx context.Context) (map[string]*types.Artifact, bool, error)
	Import(ctx context.Context, artifacts map[string]*types.Artifact) (map[string]*types.KindReport, error)
	Plan(ctx context.Context, artifacts map[string]*types.Artifact) ([]types.KindPlan, error)
}

// BackupOptions parameterise one backup run.
type BackupOptions struct {
	// Service restricts the backup to one named service; empty means all.
	Service     string
	Description string
	// Compress uploads the artifact tree as a single tar.gz blob.
	Compress bool
	// ExportOnly returns the exported artifacts in the result instead of
	// writing a snapshot to the backend.
	ExportOnly bool
}

// Manager orchestrates exporters and importers across services, fans
// artifacts out to scoped temp directories and moves them through the
// storage backend. Snapshots are write-once: the manifest is uploaded
// last, so no partially written snapshot is ever visible.
type Manager struct {
	backend  storage.Backend
	services []Service
	byName   map[string]Service
	broker   *events.Broker
}

// NewManager creates a manager over a backend and a set of services.
func NewManager(backend storage.Backend, services ...Service) *Manager {
	byName := make(map[string]Service, len(services))
	for _, svc := range services {
		byName[svc.Name()] = svc
	}
	return &Manager{
		backend:  backend,
		services: services,
		byName:   byName,
	}
}

// WithEvents attaches an event broker; lifecycle events are dropped when
// none is set.
func (m *Manager) WithEvents(broker *events.Broker) *Manager {
	m.broker = broker
	return m
}

func (m *Manager) emit(t events.EventType, message string, metadata map[string]string) {
	if m.broker != nil {
		m.broker.Emit(t, message, metadata)
	}
}

// Service returns a registered service by name.
func (m *Manager) Service(name string) (Service, error) {
	svc, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: service %q", types.ErrNotFound, name)
	}
	return svc, nil
}

func (m *Manager) selectServices(name string) ([]Service, error) {
	if name == "" {
		return m.services, nil
	}
	svc, err := m.Service(name)
	if err != nil {
		return nil, err
	}
	return []Service{svc}, nil
}

// newSnapshotID returns a random 128-bit id, hex-encoded. Assigned per
// backup invocation.
func newSnapshotID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func metadataKey(snapshotID string) string {
	return snapshotID + "_metadata.json"
}

// Backup exports the selected services into a fresh snapshot and uploads
// it. Per-kind export failures degrade the snapshot instead of failing
// it; the manifest is written only after every artifact is in place.
func (m *Manager) Backup(ctx context.Context, opts BackupOptions) (*types.BackupResult, error) {
	selected, err := m.selectServices(opts.Service)
	if err != nil {
		return nil, err
	}

	var snapshotID string
	logger := log.WithComponent("snapshot")
	if !opts.ExportOnly {
		snapshotID = newSnapshotID()
		logger = log.WithSnapshotID(snapshotID)
		m.emit(events.EventBackupStarted, "backup started", map[string]string{"snapshot_id": snapshotID})
	}
	timer := time.Now()

	tempDir, err := os.MkdirTemp("", "realmkeep_backup_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Services are independent targets: export them in parallel. Kinds
	// inside one service stay sequential (planner order).
	var mu sync.Mutex
	degraded := false
	collected := make(map[string]map[string]*types.Artifact, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range selected {
		g.Go(func() error {
			artifacts, svcDegraded, err := svc.Export(gctx)
			if err != nil {
				return fmt.Errorf("failed to export service %s: %w", svc.Name(), err)
			}
			if !opts.ExportOnly {
				if err := writeArtifacts(filepath.Join(tempDir, svc.Name()), artifacts); err != nil {
					return err
				}
			}
			mu.Lock()
			collected[svc.Name()] = artifacts
			if svcDegraded {
				degraded = true
			}
			mu.Unlock()
			if svcDegraded {
				logger.Warn().Str("service", svc.Name()).Msg("export degraded")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.BackupsTotal.WithLabelValues("error").Inc()
		m.emit(events.EventBackupFailed, err.Error(), map[string]string{"snapshot_id": snapshotID})
		return nil, err
	}

	if opts.ExportOnly {
		metrics.BackupsTotal.WithLabelValues(outcomeLabel(degraded)).Inc()
		metrics.BackupDuration.Observe(time.Since(timer).Seconds())
		logger.Info().Bool("degraded", degraded).Msg("export-only backup complete")
		return &types.BackupResult{
			Degraded:  degraded,
			Artifacts: collected,
		}, nil
	}

	if opts.Compress {
		blob := filepath.Join(tempDir, snapshotID+".tar.gz")
		// Archive the service subtrees only, then upload the single blob.
		if err := packServices(tempDir, selected, blob); err != nil {
			metrics.BackupsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		data, err := os.ReadFile(blob)
		if err != nil {
			metrics.BackupsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if err := m.backend.Put(ctx, "", snapshotID+".tar.gz", data); err != nil {
			metrics.BackupsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	} else {
		if err := m.uploadServices(ctx, snapshotID, tempDir, selected); err != nil {
			metrics.BackupsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	// Commit point: the manifest goes up last.
	manifest := types.Manifest{
		FormatVersion: types.FormatVersion,
		SnapshotID:    snapshotID,
		CreatedAt:     time.Now().UTC(),
		Description:   orDefault(opts.Description, "Backup of all services"),
		Degraded:      degraded,
		Services:      make(map[string]types.ServiceMeta, len(selected)),
	}
	for _, svc := range selected {
		manifest.Services[svc.Name()] = svc.Meta()
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := m.backend.Put(ctx, "", metadataKey(snapshotID), raw); err != nil {
		metrics.BackupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.BackupsTotal.WithLabelValues(outcomeLabel(degraded)).Inc()
	metrics.BackupDuration.Observe(time.Since(timer).Seconds())
	logger.Info().Bool("degraded", degraded).Msg("backup complete")
	if degraded {
		m.emit(events.EventBackupDegraded, "backup completed with degraded kinds", map[string]string{"snapshot_id": snapshotID})
	} else {
		m.emit(events.EventBackupCompleted, "backup completed", map[string]string{"snapshot_id": snapshotID})
	}

	return &types.BackupResult{
		SnapshotID:  snapshotID,
		MetadataKey: metadataKey(snapshotID),
		Degraded:    degraded,
	}, nil
}

func (m *Manager) uploadServices(ctx context.Context, snapshotID, tempDir string, selected []Service) error {
	for _, svc := range selected {
		src := filepath.Join(tempDir, svc.Name())
		if err := m.backend.UploadTree(ctx, snapshotID+"/"+svc.Name(), src); err != nil {
			return fmt.Errorf("failed to upload artifacts for %s: %w", svc.Name(), err)
		}
	}
	return nil
}

func packServices(tempDir string, selected []Service, destFile string) error {
	// The blob must not contain itself: archive into a sibling staging
	// dir first.
	staging, err := os.MkdirTemp("", "realmkeep_archive_")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, svc := range selected {
		src := filepath.Join(tempDir, svc.Name())
		if err := os.Rename(src, filepath.Join(staging, svc.Name())); err != nil {
			return fmt.Errorf("failed to stage artifacts for %s: %w", svc.Name(), err)
		}
	}
	if err := archive.Pack(staging, destFile); err != nil {
		return err
	}
	return nil
}

func writeArtifacts(dir string, artifacts map[string]*types.Artifact) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	for kind, artifact := range artifacts {
		raw, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s artifact: %w", kind, err)
		}
		if err := os.WriteFile(filepath.Join(dir, kind+".json"), raw, 0644); err != nil {
			return fmt.Errorf("failed to write %s artifact: %w", kind, err)
		}
	}
	return nil
}

// Restore imports the selected services of a snapshot into the live
// realm.
func (m *Manager) Restore(ctx context.Context, snapshotID, serviceName string) (map[string]*types.RestoreResult, error) {
	timer := time.Now()
	loaded, err := m.loadSnapshot(ctx, snapshotID, serviceName)
	if err != nil {
		return nil, err
	}
	m.emit(events.EventRestoreStarted, "restore started", map[string]string{"snapshot_id": snapshotID})

	results := make(map[string]*types.RestoreResult, len(loaded))
	for _, ls := range loaded {
		reports, err := ls.service.Import(ctx, ls.artifacts)
		if err != nil {
			metrics.RestoresTotal.WithLabelValues("error").Inc()
			m.emit(events.EventRestoreFailed, err.Error(), map[string]string{"snapshot_id": snapshotID})
			return nil, fmt.Errorf("failed to restore service %s: %w", ls.service.Name(), err)
		}
		result := &types.RestoreResult{
			SnapshotID: snapshotID,
			Service:    ls.service.Name(),
			Kinds:      reports,
		}
		for _, report := range reports {
			if report.Failed > 0 || report.Reason != "" {
				result.Degraded = true
			}
		}
		results[ls.service.Name()] = result
	}

	degraded := false
	for _, r := range results {
		degraded = degraded || r.Degraded
	}
	metrics.RestoresTotal.WithLabelValues(outcomeLabel(degraded)).Inc()
	metrics.RestoreDuration.Observe(time.Since(timer).Seconds())
	if degraded {
		m.emit(events.EventRestoreDegraded, "restore completed with failures", map[string]string{"snapshot_id": snapshotID})
	} else {
		m.emit(events.EventRestoreCompleted, "restore completed", map[string]string{"snapshot_id": snapshotID})
	}
	return results, nil
}

// Plan produces the dry-run diff between a snapshot and the live realm,
// without importing anything.
func (m *Manager) Plan(ctx context.Context, snapshotID, serviceName string) (map[string]*types.RestorePlan, error) {
	loaded, err := m.loadSnapshot(ctx, snapshotID, serviceName)
	if err != nil {
		return nil, err
	}

	plans := make(map[string]*types.RestorePlan, len(loaded))
	for _, ls := range loaded {
		kinds, err := ls.service.Plan(ctx, ls.artifacts)
		if err != nil {
			return nil, fmt.Errorf("failed to plan service %s: %w", ls.service.Name(), err)
		}
		plans[ls.service.Name()] = &types.RestorePlan{
			SnapshotID: snapshotID,
			Service:    ls.service.Name(),
			Kinds:      kinds,
		}
	}
	return plans, nil
}

type loadedService struct {
	service   Service
	artifacts map[string]*types.Artifact
}

// loadSnapshot downloads a snapshot into a scoped temp directory,
// validates it against its manifest and decodes the artifacts for the
// selected services.
func (m *Manager) loadSnapshot(ctx context.Context, snapshotID, serviceName string) ([]loadedService, error) {
	manifest, err := m.Manifest(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "realmkeep_restore_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := m.materialize(ctx, snapshotID, tempDir); err != nil {
		return nil, err
	}

	var loaded []loadedService
	for name, meta := range manifest.Services {
		if serviceName != "" && name != serviceName {
			continue
		}
		svc, err := m.Service(name)
		if err != nil {
			return nil, err
		}
		artifacts, err := readArtifacts(filepath.Join(tempDir, name), meta.Data)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snapshotID, err)
		}
		loaded = append(loaded, loadedService{service: svc, artifacts: artifacts})
	}
	if serviceName != "" && len(loaded) == 0 {
		return nil, fmt.Errorf("%w: snapshot %s has no service %q", types.ErrNotFound, snapshotID, serviceName)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].service.Name() < loaded[j].service.Name()
	})
	return loaded, nil
}

// materialize fetches the snapshot tree, falling back to the compressed
// blob when the tree form is absent.
func (m *Manager) materialize(ctx context.Context, snapshotID, tempDir string) error {
	keys, err := m.backend.List(ctx, snapshotID, "")
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return m.backend.DownloadTree(ctx, snapshotID, tempDir)
	}

	blob, err := m.backend.Get(ctx, "", snapshotID+".tar.gz")
	if err != nil {
		return fmt.Errorf("snapshot %s has no artifacts: %w", snapshotID, err)
	}
	archivePath := filepath.Join(tempDir, snapshotID+".tar.gz")
	if err := os.WriteFile(archivePath, blob, 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := archive.Unpack(archivePath, tempDir); err != nil {
		return err
	}
	return os.Remove(archivePath)
}

// readArtifacts loads each manifest-listed kind, enforcing that the
// manifest enumerates exactly what is present.
func readArtifacts(dir string, kinds []string) (map[string]*types.Artifact, error) {
	artifacts := make(map[string]*types.Artifact, len(kinds))
	for _, kind := range kinds {
		raw, err := os.ReadFile(filepath.Join(dir, kind+".json"))
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artifact %s.json listed in manifest but missing", types.ErrNotFound, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s artifact: %w", kind, err)
		}
		var artifact types.Artifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return nil, fmt.Errorf("%w: failed to decode %s artifact: %v", types.ErrInvalidEntity, kind, err)
		}
		artifacts[kind] = &artifact
	}
	return artifacts, nil
}

// List returns summaries of every snapshot on the backend, newest first.
func (m *Manager) List(ctx context.Context) ([]types.SnapshotSummary, error) {
	keys, err := m.backend.List(ctx, "", "")
	if err != nil {
		return nil, err
	}

	var summaries []types.SnapshotSummary
	for _, key := range keys {
		const suffix = "_metadata.json"
		if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
			continue
		}
		raw, err := m.backend.Get(ctx, "", key)
		if err != nil {
			return nil, err
		}
		var manifest types.Manifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			logger := log.WithComponent("snapshot")
			logger.Warn().Str("key", key).Err(err).Msg("skipping unreadable manifest")
			continue
		}
		summaries = append(summaries, summarize(manifest))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Manifest loads one snapshot's manifest by id.
func (m *Manager) Manifest(ctx context.Context, snapshotID string) (*types.Manifest, error) {
	raw, err := m.backend.Get(ctx, "", metadataKey(snapshotID))
	if err != nil {
		return nil, err
	}
	var manifest types.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: failed to decode manifest for %s: %v", types.ErrInvalidEntity, snapshotID, err)
	}
	return &manifest, nil
}

func summarize(manifest types.Manifest) types.SnapshotSummary {
	names := make([]string, 0, len(manifest.Services))
	for name := range manifest.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return types.SnapshotSummary{
		SnapshotID:  manifest.SnapshotID,
		CreatedAt:   manifest.CreatedAt,
		Description: manifest.Description,
		Degraded:    manifest.Degraded,
		Services:    names,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func outcomeLabel(degraded bool) string {
	if degraded {
		return "degraded"
	}
	return "ok"
}
