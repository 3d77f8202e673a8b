package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotLister reads stored snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// Handler serves the aggregate over HTTP.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

// NewHandler creates a Handler. snapshots may be nil.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "activity-handler"),
	}
}

// Stats serves GET /api/v1/activity.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshots serves GET /api/v1/activity/snapshots?limit=N (default 20, max 500).
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshots are not stored"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list snapshots"})
		return
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

// LatestSnapshot serves GET /api/v1/activity/snapshots/latest.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshots are not stored"})
		return
	}
	snap, err := h.snapshots.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to load latest snapshot", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load snapshot"})
		return
	}
	if snap == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write activity response", "error", err)
	}
}
