package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
)

// Snapshot is a stored copy of the aggregate.
type Snapshot struct {
	Stats      Stats     `json:"stats"`
	CapturedAt time.Time `json:"captured_at"`
}

// Store persists aggregate snapshots in the activity_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a snapshot store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "activity-store"),
	}
}

// SaveSnapshot persists stats.
func (s *Store) SaveSnapshot(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO activity_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving activity snapshot: %w", err)
	}
	s.logger.Info("activity snapshot saved", "total_scans", stats.TotalScans)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data, captured_at FROM activity_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap.Stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data, captured_at FROM activity_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var data []byte
		if err := rows.Scan(&data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
