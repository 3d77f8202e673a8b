package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"go.opentelemetry.io/otel/attribute"
)

// TypeGroup is the published item ids of one content type.
type TypeGroup struct {
	Type string           `json:"type"`
	IDs  []content.ItemID `json:"ids"`
}

// Enumeration lists published item ids per content type, in type order.
// Every requested type is present, possibly with an empty list.
type Enumeration []TypeGroup

// Lookup returns the ids enumerated for contentType.
func (e Enumeration) Lookup(contentType string) ([]content.ItemID, bool) {
	for _, g := range e {
		if g.Type == contentType {
			return g.IDs, true
		}
	}
	return nil, false
}

// Total is the number of enumerated items across all types.
func (e Enumeration) Total() int {
	n := 0
	for _, g := range e {
		n += len(g.IDs)
	}
	return n
}

// NormalizeFilters trims entries, drops blanks and removes duplicates while
// keeping order. A comma separated string may be passed as one entry.
func NormalizeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	seen := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		for _, part := range strings.Split(f, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// Enumerate lists published items of the filtered types. An empty filter
// means every public type except attachments, custom types first.
func (s *Service) Enumerate(ctx context.Context, typeFilters []string) (Enumeration, error) {
	ctx, span := tracer.Start(ctx, "inventory.enumerate")
	defer span.End()

	types := NormalizeFilters(typeFilters)
	if len(types) == 0 {
		all, err := s.store.Types(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing content types: %w", err)
		}
		types = publicTypes(all)
	}
	span.SetAttributes(attribute.StringSlice("inventory.types", types))

	enum := make(Enumeration, 0, len(types))
	for _, t := range types {
		ids, err := s.store.PublishedIDs(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("enumerating %s: %w", t, err)
		}
		if ids == nil {
			ids = []content.ItemID{}
		}
		enum = append(enum, TypeGroup{Type: t, IDs: ids})
	}
	span.SetAttributes(attribute.Int("inventory.items", enum.Total()))
	return enum, nil
}

func publicTypes(all []content.Type) []string {
	var custom, builtin []string
	for _, t := range all {
		if !t.Public || t.Name == content.TypeAttachment {
			continue
		}
		if t.Builtin {
			builtin = append(builtin, t.Name)
		} else {
			custom = append(custom, t.Name)
		}
	}
	return append(custom, builtin...)
}
