package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, CollectorConfig{BatchSize: 100, FlushInterval: time.Hour, Metrics: m})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(ScanEvent{Type: ScanUsageIndex, Items: 3, RequestID: "r1"})
	c.Track(ScanEvent{Type: ScanExport})
	if c.BufferLen() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", c.BufferLen())
	}
	cancel()
	c.Close()

	if pub.published() != 2 {
		t.Fatalf("expected 2 published events, got %d", pub.published())
	}
	first := pub.batches[0][0]
	if first.Key != string(ScanUsageIndex) || first.RequestID != "r1" {
		t.Errorf("unexpected event %+v", first)
	}
	if n := testutil.ToFloat64(m.ActivityEventsTotal.WithLabelValues("published")); n != 2 {
		t.Errorf("published metric = %v", n)
	}
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
	}()
	c.Start(ctx)

	c.Track(ScanEvent{Type: ScanChunk})
	c.Track(ScanEvent{Type: ScanChunk})

	deadline := time.Now().Add(2 * time.Second)
	for pub.published() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.published() != 2 {
		t.Fatalf("expected full batch to flush, got %d", pub.published())
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, CollectorConfig{BatchSize: 1, MaxBuffer: 2, FlushInterval: time.Hour, Metrics: m})

	for i := 0; i < 3; i++ {
		c.Track(ScanEvent{Type: ScanChunk})
	}
	if c.BufferLen() != 2 {
		t.Fatalf("expected buffer capped at 2, got %d", c.BufferLen())
	}
	if n := testutil.ToFloat64(m.ActivityEventsTotal.WithLabelValues("dropped")); n != 1 {
		t.Errorf("dropped metric = %v", n)
	}

	c.flush(context.Background())
	if c.BufferLen() != 2 {
		t.Errorf("failed flush must re-queue events, got %d", c.BufferLen())
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 20; i++ {
		agg.Track(ScanEvent{Type: ScanUsageIndex, Items: 2, LatencyMs: int64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	agg.Track(ScanEvent{Type: ScanExport, Failed: true, Cycles: 1, LatencyMs: 7, Timestamp: base})

	stats := agg.Stats()
	if stats.TotalScans != 21 || stats.FailedScans != 1 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if len(stats.ByType) != 2 || stats.ByType[0].Type != ScanExport {
		t.Fatalf("unexpected types %+v", stats.ByType)
	}
	usage := stats.ByType[1]
	if usage.Count != 20 || usage.Items != 40 {
		t.Errorf("unexpected usage stats %+v", usage)
	}
	if usage.AvgLatencyMs != 10.5 || usage.P95LatencyMs != 20 {
		t.Errorf("avg=%v p95=%v", usage.AvgLatencyMs, usage.P95LatencyMs)
	}
	if !usage.LastScan.Equal(base.Add(20 * time.Second)) {
		t.Errorf("unexpected last scan %v", usage.LastScan)
	}
	if stats.LastScan == nil || stats.LastScan.Type != ScanUsageIndex || stats.LastScan.LatencyMs != 20 {
		t.Errorf("unexpected overall last scan %+v", stats.LastScan)
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	value, _ := json.Marshal(ScanEvent{Type: ScanBlockList, Items: 4})

	if err := handle(context.Background(), []byte("block_list"), value); err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), nil, []byte(`not json`)); err != nil {
		t.Fatal("undecodable messages must be skipped, not retried")
	}
	if got := agg.Stats().TotalScans; got != 1 {
		t.Errorf("expected 1 scan, got %d", got)
	}
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(ScanEvent{Type: ScanReferenceIndex, UsagePairs: 3})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalScans != 1 || stats.ByType[0].Type != ScanReferenceIndex {
		t.Errorf("unexpected stats %+v", stats)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity/snapshots", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a store, got %d", rec.Code)
	}
}

type fakeSnapshots struct {
	limit  int
	latest *Snapshot
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return []Snapshot{{Stats: Stats{TotalScans: 9}}}, nil
}

func (f *fakeSnapshots) LatestSnapshot(context.Context) (*Snapshot, error) {
	return f.latest, nil
}

func TestHandlerSnapshots(t *testing.T) {
	snaps := &fakeSnapshots{}
	h := NewHandler(NewAggregator(), snaps)

	rec := httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity/snapshots?limit=5", nil))
	if rec.Code != http.StatusOK || snaps.limit != 5 {
		t.Fatalf("unexpected %d limit=%d", rec.Code, snaps.limit)
	}

	h.Snapshots(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/activity/snapshots?limit=9999", nil))
	if snaps.limit != 20 {
		t.Errorf("out of range limit should fall back to 20, got %d", snaps.limit)
	}
}

func TestHandlerLatestSnapshot(t *testing.T) {
	snaps := &fakeSnapshots{}
	h := NewHandler(NewAggregator(), snaps)

	rec := httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity/snapshots/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the first snapshot, got %d", rec.Code)
	}

	snaps.latest = &Snapshot{Stats: Stats{TotalScans: 4}, CapturedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	rec = httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activity/snapshots/latest", nil))
	var got Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || got.Stats.TotalScans != 4 {
		t.Errorf("unexpected %d %+v", rec.Code, got)
	}
}
