// Package inventory derives block usage from the content store: which block
// types appear on which published items, which items reference each reusable
// fragment, and presentation helpers (chunking, CSV export) over the result.
// Every call re-derives its answer from current content.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("internal/inventory")

// metadataBatch bounds how many items are loaded per Items call.
const metadataBatch = 500

// Config configures a Service.
type Config struct {
	BaseURL string
	// ReferenceMatching selects the fragment reference matcher:
	// "textual" (default) or "structural".
	ReferenceMatching string
	Metrics           *metrics.Metrics
	Tracker           activity.Tracker
}

// Service answers inventory queries against a content store.
type Service struct {
	store   content.Store
	walker  *blocks.Walker
	links   content.Linker
	matcher ReferenceMatcher
	group   singleflight.Group
	metrics *metrics.Metrics
	tracker activity.Tracker
	now     func() time.Time
	logger  *slog.Logger
}

// New builds a Service reading from store.
func New(store content.Store, cfg Config) (*Service, error) {
	matcher, err := NewMatcher(cfg.ReferenceMatching)
	if err != nil {
		return nil, err
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = activity.Discard{}
	}
	return &Service{
		store:   store,
		walker:  blocks.NewWalker(store, cfg.Metrics),
		links:   content.NewLinker(cfg.BaseURL),
		matcher: matcher,
		metrics: cfg.Metrics,
		tracker: tracker,
		now:     time.Now,
		logger:  slog.Default().With("component", "inventory"),
	}, nil
}

// Linker returns the link builder used for display metadata.
func (s *Service) Linker() content.Linker { return s.links }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// SetClock replaces the clock used for export filenames and events.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ListBlocksForItem returns the distinct block types used by one item.
func (s *Service) ListBlocksForItem(ctx context.Context, id content.ItemID) ([]string, error) {
	ctx, span := tracer.Start(ctx, "inventory.list_blocks_for_item",
		trace.WithAttributes(attribute.Int64("inventory.item_id", int64(id))))
	defer span.End()
	names, err := s.walker.ListBlocksForItem(ctx, id)
	spanError(span, err)
	return names, err
}

// Item loads one item.
func (s *Service) Item(ctx context.Context, id content.ItemID) (*content.Item, error) {
	return s.store.Get(ctx, id)
}

// BuildUsageIndex maps every block type used by published items of the
// filtered types to the items using it. Concurrent calls with the same
// filter share one pass; the result is not kept afterwards. The shared pass
// does not inherit any caller's cancellation, so a caller that gives up only
// stops waiting.
func (s *Service) BuildUsageIndex(ctx context.Context, typeFilters []string) (*UsageIndex, error) {
	filters := NormalizeFilters(typeFilters)
	key := "usage:" + strings.Join(filters, ",")
	passCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.buildUsageIndex(passCtx, filters)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.FromContext(ctx).Debug("usage index build shared", "component", "inventory", "filters", filters)
		}
		return res.Val.(*UsageIndex), nil
	}
}

type walkedItem struct {
	contentType string
	id          content.ItemID
	names       []string
}

func (s *Service) buildUsageIndex(ctx context.Context, filters []string) (idx *UsageIndex, err error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "inventory.build_usage_index")
	defer span.End()
	defer func() {
		spanError(span, err)
		s.observe(ctx, activity.ScanUsageIndex, start, idx, err)
	}()

	enum, err := s.Enumerate(ctx, filters)
	if err != nil {
		return nil, err
	}

	idx = newUsageIndex()
	seen := make(map[content.ItemID]struct{}, enum.Total())
	var walked []walkedItem
	for _, group := range enum {
		for _, id := range group.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			idx.Items++
			names, err := s.walker.ListBlocksForItem(ctx, id)
			var cycle *blocks.CycleError
			if errors.As(err, &cycle) {
				idx.Cycles = append(idx.Cycles, CycleReport{ItemID: id, ContentType: group.Type, Chain: cycle.Chain})
				logger.FromContext(ctx).Warn("excluding item with cyclic fragment references",
					"component", "inventory", "item_id", id, "chain", cycle.Error())
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("walking item %d: %w", id, err)
			}
			if len(names) > 0 {
				walked = append(walked, walkedItem{contentType: group.Type, id: id, names: names})
			}
		}
	}
	if s.metrics != nil {
		s.metrics.ItemsScanned.Add(float64(idx.Items))
	}

	ids := make([]content.ItemID, len(walked))
	for i, w := range walked {
		ids[i] = w.id
	}
	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, w := range walked {
		item, ok := items[w.id]
		if !ok {
			continue
		}
		ref := s.links.Ref(item, w.contentType)
		for _, name := range w.names {
			idx.add(name, ref)
		}
	}

	span.SetAttributes(
		attribute.Int("inventory.items", idx.Items),
		attribute.Int("inventory.block_types", len(idx.Buckets)),
		attribute.Int("inventory.cycles", len(idx.Cycles)),
	)
	return idx, nil
}

// loadItems fetches display metadata in batches.
func (s *Service) loadItems(ctx context.Context, ids []content.ItemID) (map[content.ItemID]*content.Item, error) {
	out := make(map[content.ItemID]*content.Item, len(ids))
	for startIdx := 0; startIdx < len(ids); startIdx += metadataBatch {
		end := startIdx + metadataBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.store.Items(ctx, ids[startIdx:end])
		if err != nil {
			return nil, fmt.Errorf("loading item metadata: %w", err)
		}
		for id, item := range batch {
			out[id] = item
		}
	}
	return out, nil
}

// observe records metrics and an activity event for a finished build.
func (s *Service) observe(ctx context.Context, kind activity.ScanType, start time.Time, idx *UsageIndex, err error) {
	elapsed := s.now().Sub(start)
	event := activity.ScanEvent{
		Type:      kind,
		Failed:    err != nil,
		LatencyMs: elapsed.Milliseconds(),
		Timestamp: start.UTC(),
		RequestID: logger.RequestID(ctx),
	}
	if idx != nil {
		event.Items = idx.Items
		event.BlockTypes = len(idx.Buckets)
		event.UsagePairs = idx.Pairs()
		event.Cycles = len(idx.Cycles)
	}
	s.Record(ctx, event, elapsed)
}

// Record publishes a scan event and updates build metrics. Callers outside
// the package use it for passes they drive themselves.
func (s *Service) Record(ctx context.Context, event activity.ScanEvent, elapsed time.Duration) {
	status := "ok"
	if event.Failed {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.BuildsTotal.WithLabelValues(string(event.Type), status).Inc()
		s.metrics.BuildDuration.WithLabelValues(string(event.Type)).Observe(elapsed.Seconds())
	}
	if event.RequestID == "" {
		event.RequestID = logger.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	s.tracker.Track(event)
	logger.FromContext(ctx).Debug("inventory pass finished",
		"component", "inventory",
		"kind", event.Type,
		"items", event.Items,
		"block_types", event.BlockTypes,
		"status", status,
		"duration", elapsed,
	)
}

func spanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
