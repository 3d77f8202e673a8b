package activity

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/kafka"
)

// maxSamples bounds the latency window kept per scan type.
const maxSamples = 10000

// TypeStats summarises the scans of one type.
type TypeStats struct {
	Type         ScanType  `json:"type"`
	Count        int64     `json:"count"`
	Failed       int64     `json:"failed"`
	Items        int64     `json:"items"`
	Cycles       int64     `json:"cycles"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	P95LatencyMs int64     `json:"p95_latency_ms"`
	LastScan     time.Time `json:"last_scan"`
}

// Stats is the aggregate over every recorded scan.
type Stats struct {
	TotalScans     int64       `json:"total_scans"`
	FailedScans    int64       `json:"failed_scans"`
	ScansPerMinute float64     `json:"scans_per_minute"`
	LastScan       *ScanEvent  `json:"last_scan,omitempty"`
	ByType         []TypeStats `json:"by_type"`
}

type typeState struct {
	count, failed, items, cycles int64
	latencies                    []int64
	last                         time.Time
}

// Aggregator keeps running scan statistics. Events arrive through Track,
// either in process or from a Kafka consumer via HandleEvent.
type Aggregator struct {
	mu        sync.RWMutex
	types     map[ScanType]*typeState
	last      *ScanEvent
	total     int64
	failed    int64
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		types:     make(map[ScanType]*typeState),
		startTime: time.Now(),
		now:       time.Now,
		logger:    slog.Default().With("component", "activity-aggregator"),
	}
}

// HandleEvent decodes broker messages into the aggregator. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ScanEvent](value)
		if err != nil || event.Type == "" {
			agg.logger.Error("failed to decode activity event", "key", string(key), "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records one scan.
func (a *Aggregator) Track(event ScanEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.types[event.Type]
	if !ok {
		st = &typeState{}
		a.types[event.Type] = st
	}
	st.count++
	a.total++
	if event.Failed {
		st.failed++
		a.failed++
	}
	st.items += int64(event.Items)
	st.cycles += int64(event.Cycles)
	if len(st.latencies) >= maxSamples {
		st.latencies = st.latencies[1:]
	}
	st.latencies = append(st.latencies, event.LatencyMs)
	if event.Timestamp.After(st.last) {
		st.last = event.Timestamp
	}
	if a.last == nil || !event.Timestamp.Before(a.last.Timestamp) {
		e := event
		a.last = &e
	}
}

// Stats returns a snapshot of the aggregate, types in name order.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalScans:  a.total,
		FailedScans: a.failed,
		ByType:      make([]TypeStats, 0, len(a.types)),
	}
	if a.last != nil {
		e := *a.last
		stats.LastScan = &e
	}
	for t, st := range a.types {
		ts := TypeStats{
			Type:     t,
			Count:    st.count,
			Failed:   st.failed,
			Items:    st.items,
			Cycles:   st.cycles,
			LastScan: st.last,
		}
		if len(st.latencies) > 0 {
			sorted := slices.Clone(st.latencies)
			slices.Sort(sorted)
			var sum int64
			for _, l := range sorted {
				sum += l
			}
			ts.AvgLatencyMs = float64(sum) / float64(len(sorted))
			ts.P95LatencyMs = percentile(sorted, 95)
		}
		stats.ByType = append(stats.ByType, ts)
	}
	slices.SortFunc(stats.ByType, func(x, y TypeStats) int {
		switch {
		case x.Type < y.Type:
			return -1
		case x.Type > y.Type:
			return 1
		}
		return 0
	})
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.ScansPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
