package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reference matching modes.
const (
	MatchTextual    = "textual"
	MatchStructural = "structural"
)

// ReferenceMatcher decides whether a raw item body references a fragment.
type ReferenceMatcher interface {
	Matches(body string, fragmentID content.ItemID) bool
}

// NewMatcher returns the matcher for mode. An empty mode is textual.
func NewMatcher(mode string) (ReferenceMatcher, error) {
	switch mode {
	case "", MatchTextual:
		return TextualMatcher{}, nil
	case MatchStructural:
		return StructuralMatcher{}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "unknown reference matching mode %q", mode)
	}
}

// TextualMatcher looks for `"ref":<id>` or `"ref":"<id>"` in the raw body.
// It does not parse, so `"ref":123` also matches fragment 12.
type TextualMatcher struct{}

func (TextualMatcher) Matches(body string, fragmentID content.ItemID) bool {
	id := strconv.FormatInt(int64(fragmentID), 10)
	return strings.Contains(body, `"ref":`+id) || strings.Contains(body, `"ref":"`+id+`"`)
}

// StructuralMatcher parses the body and compares ref attributes directly.
type StructuralMatcher struct{}

func (StructuralMatcher) Matches(body string, fragmentID content.ItemID) bool {
	if !strings.Contains(body, `"ref"`) {
		return false
	}
	return blocks.ContainsRef(blocks.Parse(body), fragmentID)
}

// BuildReferenceIndex lists the published items whose body references
// fragmentID, in enumeration order.
func (s *Service) BuildReferenceIndex(ctx context.Context, fragmentID content.ItemID) (refs []content.Ref, err error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "inventory.build_reference_index",
		trace.WithAttributes(attribute.Int64("inventory.fragment_id", int64(fragmentID))))
	defer span.End()
	defer func() {
		spanError(span, err)
		s.Record(ctx, activity.ScanEvent{
			Type:       activity.ScanReferenceIndex,
			UsagePairs: len(refs),
			Failed:     err != nil,
			Timestamp:  start.UTC(),
		}, s.now().Sub(start))
	}()

	byFragment, err := s.scanReferences(ctx, []content.ItemID{fragmentID})
	if err != nil {
		return nil, err
	}
	return byFragment[fragmentID], nil
}

// Fragment is a published reusable fragment with the items referencing it.
type Fragment struct {
	ID      content.ItemID `json:"id"`
	Title   string         `json:"title"`
	Body    string         `json:"content"`
	EditURL string         `json:"edit_link"`
	Usage   []content.Ref  `json:"usage"`
}

// ReusableFragments lists every published fragment with its reference
// list. Item bodies are read once for all fragments.
func (s *Service) ReusableFragments(ctx context.Context) (out []Fragment, err error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "inventory.reusable_fragments")
	defer span.End()
	defer func() {
		spanError(span, err)
		pairs := 0
		for _, f := range out {
			pairs += len(f.Usage)
		}
		s.Record(ctx, activity.ScanEvent{
			Type:       activity.ScanReferenceCatalog,
			Items:      len(out),
			UsagePairs: pairs,
			Failed:     err != nil,
			Timestamp:  start.UTC(),
		}, s.now().Sub(start))
	}()

	ids, err := s.store.PublishedIDs(ctx, content.TypeFragment)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	if len(ids) == 0 {
		return []Fragment{}, nil
	}
	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byFragment, err := s.scanReferences(ctx, ids)
	if err != nil {
		return nil, err
	}

	out = make([]Fragment, 0, len(ids))
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			continue
		}
		usage := byFragment[id]
		if usage == nil {
			usage = []content.Ref{}
		}
		out = append(out, Fragment{
			ID:      id,
			Title:   item.Title,
			Body:    item.Body,
			EditURL: s.links.EditURL(id),
			Usage:   usage,
		})
	}
	span.SetAttributes(attribute.Int("inventory.fragments", len(out)))
	return out, nil
}

// scanReferences reads every enumerated body once and tests it against each
// fragment id.
func (s *Service) scanReferences(ctx context.Context, fragmentIDs []content.ItemID) (map[content.ItemID][]content.Ref, error) {
	enum, err := s.Enumerate(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[content.ItemID][]content.Ref, len(fragmentIDs))
	for _, group := range enum {
		for _, id := range group.IDs {
			body, err := s.store.Body(ctx, id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("reading item %d: %w", id, err)
			}
			var item *content.Item
			for _, fid := range fragmentIDs {
				if !s.matcher.Matches(body, fid) {
					continue
				}
				if item == nil {
					if item, err = s.store.Get(ctx, id); err != nil {
						return nil, fmt.Errorf("loading item %d: %w", id, err)
					}
				}
				out[fid] = append(out[fid], s.links.Ref(item, group.Type))
			}
		}
	}
	return out, nil
}
