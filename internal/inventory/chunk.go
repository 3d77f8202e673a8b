package inventory

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
)

// DefaultChunkSize is used when a chunk request carries no usable limit.
const DefaultChunkSize = 10

// ChunkResult is one window over a usage index's buckets.
type ChunkResult struct {
	Buckets []*Bucket `json:"blocks"`
	Total   int       `json:"total"`
	Loaded  int       `json:"loaded"`
	HasMore bool      `json:"has_more"`
}

// Chunk slices idx's buckets. Paging is over block types, not items. A
// negative offset starts at zero and a non-positive limit uses
// DefaultChunkSize.
func Chunk(idx *UsageIndex, offset, limit int) ChunkResult {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	total := idx.Len()
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := make([]*Bucket, end-offset)
	copy(window, idx.Buckets[offset:end])
	return ChunkResult{
		Buckets: window,
		Total:   total,
		Loaded:  offset + len(window),
		HasMore: offset+limit < total,
	}
}

// UsageChunk builds the full usage index and returns one window of it.
func (s *Service) UsageChunk(ctx context.Context, offset, limit int) (ChunkResult, error) {
	idx, err := s.BuildUsageIndex(ctx, nil)
	if err != nil {
		return ChunkResult{}, err
	}
	res := Chunk(idx, offset, limit)
	s.Record(ctx, activity.ScanEvent{
		Type:       activity.ScanChunk,
		Items:      idx.Items,
		BlockTypes: len(res.Buckets),
		Timestamp:  s.now().UTC(),
	}, 0)
	return res, nil
}
