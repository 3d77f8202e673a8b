package inventory

import (
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
)

// Bucket lists the items using one block type, in enumeration order.
type Bucket struct {
	BlockType string        `json:"name"`
	Usages    []content.Ref `json:"pages"`
}

// CycleReport names an item left out of a usage index because one of its
// fragments references itself.
type CycleReport struct {
	ItemID      content.ItemID   `json:"item_id"`
	ContentType string           `json:"post_type"`
	Chain       []content.ItemID `json:"chain"`
}

// UsageIndex maps block types to the items using them. Buckets keep the
// order in which block types were first seen.
type UsageIndex struct {
	Buckets []*Bucket     `json:"blocks"`
	Items   int           `json:"items_scanned"`
	Cycles  []CycleReport `json:"cycles,omitempty"`

	byType map[string]*Bucket
}

func newUsageIndex() *UsageIndex {
	return &UsageIndex{Buckets: []*Bucket{}, byType: make(map[string]*Bucket)}
}

// add records ref as a user of blockType. Callers pass each item once with
// deduplicated block types, so a pair is never recorded twice.
func (u *UsageIndex) add(blockType string, ref content.Ref) {
	b, ok := u.byType[blockType]
	if !ok {
		b = &Bucket{BlockType: blockType}
		u.byType[blockType] = b
		u.Buckets = append(u.Buckets, b)
	}
	b.Usages = append(b.Usages, ref)
}

// Lookup returns the bucket for blockType.
func (u *UsageIndex) Lookup(blockType string) (*Bucket, bool) {
	b, ok := u.byType[blockType]
	return b, ok
}

// Len is the number of block types in the index.
func (u *UsageIndex) Len() int { return len(u.Buckets) }

// Pairs is the number of (block type, item) usage pairs.
func (u *UsageIndex) Pairs() int {
	n := 0
	for _, b := range u.Buckets {
		n += len(b.Usages)
	}
	return n
}

// BlockTypes returns the block type names in bucket order.
func (u *UsageIndex) BlockTypes() []string {
	out := make([]string, len(u.Buckets))
	for i, b := range u.Buckets {
		out[i] = b.BlockType
	}
	return out
}
