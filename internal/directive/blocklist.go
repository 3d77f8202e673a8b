package directive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/render"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
)

// BlockListName is the directive name of the block list.
const BlockListName = "bl_display_block_list"

// BlockListParams are the attributes of the block list directive.
type BlockListParams struct {
	// PostTypes limits the listing to these content types. Empty means all.
	PostTypes []string
	// PostID lists a single item when non-zero.
	PostID content.ItemID
	// Unique collapses the listing into one deduplicated table.
	Unique bool
}

// DecodeBlockListParams reads post_type, post_id and unique_blocks.
func DecodeBlockListParams(attrs Attrs) (BlockListParams, error) {
	p := BlockListParams{
		PostTypes: inventory.NormalizeFilters([]string{attrs.String("post_type")}),
		Unique:    attrs.Bool("unique_blocks", false),
	}
	if raw := attrs.String("post_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return p, apperrors.Newf(apperrors.ErrInvalidInput, 400, "post_id must be a positive integer, got %q", raw)
		}
		p.PostID = content.ItemID(id)
	}
	return p, nil
}

// Inventory is what the block list needs from the inventory service.
type Inventory interface {
	Enumerate(ctx context.Context, typeFilters []string) (inventory.Enumeration, error)
	ListBlocksForItem(ctx context.Context, id content.ItemID) ([]string, error)
	Item(ctx context.Context, id content.ItemID) (*content.Item, error)
	Linker() content.Linker
	Record(ctx context.Context, event activity.ScanEvent, elapsed time.Duration)
}

// BlockList lists the block types used by one item or by every item of a
// set of content types.
type BlockList struct {
	inv    Inventory
	render *render.Renderer
	logger *slog.Logger
}

// NewBlockList returns the block list directive.
func NewBlockList(inv Inventory, r *render.Renderer) *BlockList {
	return &BlockList{inv: inv, render: r, logger: slog.Default().With("component", "directive-block-list")}
}

func (d *BlockList) Name() string { return BlockListName }

func (d *BlockList) Render(ctx context.Context, attrs Attrs) (string, error) {
	params, err := DecodeBlockListParams(attrs)
	if err != nil {
		return "", err
	}
	listing, err := d.Listing(ctx, params)
	if err != nil {
		return "", err
	}
	return d.render.BlockListing(listing)
}

// Listing computes the tables for params.
func (d *BlockList) Listing(ctx context.Context, params BlockListParams) (listing render.BlockListing, err error) {
	start := time.Now()
	items := 0
	defer func() {
		event := activity.ScanEvent{Type: activity.ScanBlockList, Items: items, Failed: err != nil, Timestamp: start.UTC()}
		for _, t := range listing.Tables {
			event.UsagePairs += len(t.Blocks)
		}
		d.inv.Record(ctx, event, time.Since(start))
	}()

	if params.PostID != 0 {
		items = 1
		table, err := d.itemTable(ctx, params.PostID, "")
		if err != nil {
			return listing, err
		}
		listing.Tables = []render.BlockTable{table}
		return listing, nil
	}

	enum, err := d.inv.Enumerate(ctx, params.PostTypes)
	if err != nil {
		return listing, err
	}
	var union []string
	for _, group := range enum {
		for _, id := range group.IDs {
			items++
			if params.Unique {
				names, err := d.inv.ListBlocksForItem(ctx, id)
				if errors.Is(err, apperrors.ErrCyclicReference) {
					d.skipCycle(ctx, id, err)
					continue
				}
				if err != nil {
					return listing, err
				}
				union = append(union, names...)
				continue
			}
			table, err := d.itemTable(ctx, id, group.Type)
			if errors.Is(err, apperrors.ErrCyclicReference) {
				d.skipCycle(ctx, id, err)
				continue
			}
			if err != nil {
				return listing, err
			}
			listing.Tables = append(listing.Tables, table)
		}
	}
	if params.Unique {
		listing.Tables = []render.BlockTable{{Heading: render.UniqueHeading, Blocks: blocks.Dedupe(union)}}
	}
	return listing, nil
}

func (d *BlockList) itemTable(ctx context.Context, id content.ItemID, contentType string) (render.BlockTable, error) {
	names, err := d.inv.ListBlocksForItem(ctx, id)
	if err != nil {
		return render.BlockTable{}, err
	}
	item, err := d.inv.Item(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		item = &content.Item{ID: id}
	} else if err != nil {
		return render.BlockTable{}, fmt.Errorf("loading item %d: %w", id, err)
	}
	ref := d.inv.Linker().Ref(item, contentType)
	return render.BlockTable{Item: &ref, Blocks: names}, nil
}

func (d *BlockList) skipCycle(ctx context.Context, id content.ItemID, err error) {
	logger.FromContext(ctx).Warn("skipping item with cyclic fragment references",
		"component", "directive-block-list", "item_id", id, "error", err)
}
