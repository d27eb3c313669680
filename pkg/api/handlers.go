package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/snapshot"
	"github.com/realmkeep/realmkeep/pkg/types"
)

type backupRequest struct {
	ServiceName string `json:"service_name,omitempty"`
	Description string `json:"description,omitempty"`
	Compress    bool   `json:"compress,omitempty"`
	// Snapshot=false returns the exported data without storing a snapshot.
	Snapshot *bool `json:"snapshot,omitempty"`
}

type restoreRequest struct {
	SnapshotID  string `json:"snapshot_id"`
	ServiceName string `json:"service_name,omitempty"`
	// Plan returns the diff instead of applying the snapshot.
	Plan bool `json:"plan,omitempty"`
}

type importKindRequest struct {
	Entities []types.Entity `json:"entities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.manager.Backup(r.Context(), snapshot.BackupOptions{
		Service:     req.ServiceName,
		Description: req.Description,
		Compress:    req.Compress,
		ExportOnly:  req.Snapshot != nil && !*req.Snapshot,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// A degraded snapshot was accepted but is incomplete.
	status := http.StatusOK
	if result.Degraded {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.manager.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []types.SnapshotSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.URL.Query().Get("snapshot_id")
	if snapshotID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "snapshot_id query parameter is required"})
		return
	}
	manifest, err := s.manager.Info(r.Context(), snapshotID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleExportKind(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	kind := chi.URLParam(r, "kind")

	artifact, err := s.manager.ExportKind(r.Context(), service, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if artifact.Failed() {
		writeJSON(w, artifact.Status, artifact)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SnapshotID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "snapshot_id is required"})
		return
	}

	if req.Plan {
		plans, err := s.manager.Plan(r.Context(), req.SnapshotID, req.ServiceName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plans)
		return
	}

	results, err := s.manager.Restore(r.Context(), req.SnapshotID, req.ServiceName)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	for _, result := range results {
		if result.Degraded {
			status = http.StatusAccepted
		}
	}
	writeJSON(w, status, results)
}

func (s *Server) handleImportKind(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	kind := chi.URLParam(r, "kind")

	var req importKindRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := s.manager.ImportKind(r.Context(), service, kind, req.Entities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Events().Recent())
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Join(types.ErrInvalidEntity, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrInvalidEntity), errors.Is(err, types.ErrConfig),
		errors.Is(err, types.ErrCyclicDependency):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, types.ErrTransport):
		status = http.StatusBadGateway
	default:
		if s := types.StatusOf(err); s >= 500 {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
