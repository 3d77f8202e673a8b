package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
)

// FindExamples returns, for each requested block type, the first occurrence
// found in published content. Items are searched in enumeration order and
// fragments are not followed. Types without an occurrence are absent.
func (s *Service) FindExamples(ctx context.Context, names []string) (map[string]*blocks.Node, error) {
	ctx, span := tracer.Start(ctx, "inventory.find_examples")
	defer span.End()

	found := make(map[string]*blocks.Node, len(names))
	if len(names) == 0 {
		return found, nil
	}
	enum, err := s.Enumerate(ctx, nil)
	if err != nil {
		spanError(span, err)
		return nil, err
	}
	for _, group := range enum {
		for _, id := range group.IDs {
			body, err := s.store.Body(ctx, id)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				spanError(span, err)
				return nil, fmt.Errorf("reading item %d: %w", id, err)
			}
			nodes := blocks.Parse(body)
			for _, name := range names {
				if _, ok := found[name]; ok {
					continue
				}
				if n := blocks.FindFirst(nodes, name); n != nil {
					found[name] = n
				}
			}
			if len(found) == len(names) {
				return found, nil
			}
		}
	}
	return found, nil
}
