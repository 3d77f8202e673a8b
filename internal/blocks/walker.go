package blocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
)

// BodySource resolves item bodies. Missing items must return an error
// wrapping errors.ErrNotFound.
type BodySource interface {
	Body(ctx context.Context, id content.ItemID) (string, error)
}

// CycleError reports a fragment that references itself through a chain of
// fragments. Chain lists the fragment ids from the outermost expansion to
// the repeated id.
type CycleError struct {
	Chain []content.ItemID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return "cyclic fragment reference: " + strings.Join(parts, " -> ")
}

func (e *CycleError) Is(target error) bool {
	return target == apperrors.ErrCyclicReference
}

// Walker collects block type names from block trees, dereferencing reusable
// fragments through a BodySource.
type Walker struct {
	src     BodySource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWalker returns a Walker reading fragment bodies from src. m may be nil.
func NewWalker(src BodySource, m *metrics.Metrics) *Walker {
	return &Walker{
		src:     src,
		metrics: m,
		logger:  slog.Default().With("component", "block-walker"),
	}
}

// CollectBlockTypes returns every block type name in body in pre-order,
// duplicates included. A node with inner blocks is descended into; only a
// childless node has its "ref" attribute followed.
func (w *Walker) CollectBlockTypes(ctx context.Context, body string) ([]string, error) {
	var names []string
	if err := w.walk(ctx, Parse(body), nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListBlocksForItem returns the distinct block types used by item id in
// first-seen order. A missing item has no blocks.
func (w *Walker) ListBlocksForItem(ctx context.Context, id content.ItemID) ([]string, error) {
	body, err := w.src.Body(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := w.walk(ctx, Parse(body), []content.ItemID{id}, &names); err != nil {
		return nil, err
	}
	return Dedupe(names), nil
}

func (w *Walker) walk(ctx context.Context, nodes []*Node, chain []content.ItemID, out *[]string) error {
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n.Name != "" {
			*out = append(*out, n.Name)
		}
		if len(n.InnerBlocks) > 0 {
			if err := w.walk(ctx, n.InnerBlocks, chain, out); err != nil {
				return err
			}
			continue
		}

		ref, present := RefAttr(n)
		if !present {
			continue
		}
		if ref <= 0 {
			w.missing(ctx, n.Attrs["ref"], "unresolvable ref")
			continue
		}
		for _, seen := range chain {
			if seen == ref {
				cycle := append(append([]content.ItemID{}, chain...), ref)
				if w.metrics != nil {
					w.metrics.CyclicReferences.Inc()
				}
				return &CycleError{Chain: cycle}
			}
		}

		body, err := w.src.Body(ctx, ref)
		if errors.Is(err, apperrors.ErrNotFound) {
			w.missing(ctx, ref, "fragment not found")
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving fragment %d: %w", ref, err)
		}
		if body == "" {
			w.missing(ctx, ref, "fragment body empty")
			continue
		}
		if w.metrics != nil {
			w.metrics.FragmentsResolved.Inc()
		}
		next := append(chain[:len(chain):len(chain)], ref)
		if err := w.walk(ctx, Parse(body), next, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) missing(ctx context.Context, ref any, reason string) {
	if w.metrics != nil {
		w.metrics.MissingReferences.Inc()
	}
	logger.FromContext(ctx).Debug("skipping fragment reference",
		"component", "block-walker",
		"ref", ref,
		"reason", reason,
	)
}

// RefAttr reads the "ref" attribute of n. present is false when the
// attribute is absent or empty ("", "0", 0, false, null). A present but
// non-numeric ref yields id 0.
func RefAttr(n *Node) (id content.ItemID, present bool) {
	raw, ok := n.Attrs["ref"]
	if !ok || raw == nil {
		return 0, false
	}
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		if !v {
			return 0, false
		}
		return 0, true
	default:
		return 0, true
	}
	if s == "" || s == "0" {
		return 0, false
	}
	parsed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, true
	}
	return content.ItemID(parsed), true
}

// Dedupe removes repeated names, keeping the first occurrence of each.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// FindFirst returns the first node named name in pre-order, searching inner
// blocks but not following fragment references.
func FindFirst(nodes []*Node, name string) *Node {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
		if found := FindFirst(n.InnerBlocks, name); found != nil {
			return found
		}
	}
	return nil
}

// ContainsRef reports whether any node in the tree references fragment id
// directly through its "ref" attribute.
func ContainsRef(nodes []*Node, id content.ItemID) bool {
	for _, n := range nodes {
		if ref, ok := RefAttr(n); ok && ref == id {
			return true
		}
		if ContainsRef(n.InnerBlocks, id) {
			return true
		}
	}
	return false
}
