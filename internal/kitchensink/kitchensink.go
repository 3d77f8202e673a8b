// Package kitchensink assembles the dashboard report: block usage, custom
// theme blocks with example markup, patterns, reusable fragments and the
// theme's design tokens. Only the requested sections are computed.
package kitchensink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/theme"
	"golang.org/x/sync/errgroup"
)

// Sections toggles the parts of a report.
type Sections struct {
	Blocks       bool
	CustomBlocks bool
	Patterns     bool
	Reusable     bool
	Colors       bool
	Fonts        bool
	Classes      bool
}

// AllSections enables every section.
func AllSections() Sections {
	return Sections{Blocks: true, CustomBlocks: true, Patterns: true, Reusable: true, Colors: true, Fonts: true, Classes: true}
}

// Inventory is the subset of the inventory service the report needs.
type Inventory interface {
	BuildUsageIndex(ctx context.Context, typeFilters []string) (*inventory.UsageIndex, error)
	ReusableFragments(ctx context.Context) ([]inventory.Fragment, error)
	FindExamples(ctx context.Context, names []string) (map[string]*blocks.Node, error)
	Record(ctx context.Context, event activity.ScanEvent, elapsed time.Duration)
}

// Theme is the subset of the theme catalog the report needs.
type Theme interface {
	Colors() ([]theme.Color, error)
	FontSizes() ([]theme.FontSize, error)
	CSSClasses() ([]string, error)
	CustomBlocks() ([]theme.CustomBlock, error)
	Patterns() ([]theme.Pattern, error)
}

// CustomBlock is a theme block with markup ready to paste into the editor.
type CustomBlock struct {
	theme.CustomBlock
	Markup      string `json:"markup"`
	RealExample bool   `json:"real_example"`
}

// Report is the computed dashboard content. Disabled sections stay nil.
type Report struct {
	Sections     Sections              `json:"-"`
	Usage        *inventory.UsageIndex `json:"blocks,omitempty"`
	CustomBlocks []CustomBlock         `json:"custom_blocks,omitempty"`
	Patterns     []theme.Pattern       `json:"patterns,omitempty"`
	Reusable     []inventory.Fragment  `json:"reusable,omitempty"`
	Colors       []theme.Color         `json:"colors,omitempty"`
	FontSizes    []theme.FontSize      `json:"font_sizes,omitempty"`
	Classes      []string              `json:"classes,omitempty"`
}

// Builder computes reports.
type Builder struct {
	inv    Inventory
	theme  Theme
	logger *slog.Logger
}

// NewBuilder returns a Builder over inv and th.
func NewBuilder(inv Inventory, th Theme) *Builder {
	return &Builder{
		inv:    inv,
		theme:  th,
		logger: slog.Default().With("component", "kitchen-sink"),
	}
}

// Build computes the enabled sections. Sections are independent and run
// concurrently; the first failure cancels the rest.
func (b *Builder) Build(ctx context.Context, sections Sections) (*Report, error) {
	start := time.Now()
	report := &Report{Sections: sections}
	g, gctx := errgroup.WithContext(ctx)

	if sections.Blocks {
		g.Go(func() error {
			idx, err := b.inv.BuildUsageIndex(gctx, nil)
			if err != nil {
				return fmt.Errorf("usage index: %w", err)
			}
			report.Usage = idx
			return nil
		})
	}
	if sections.CustomBlocks {
		g.Go(func() error {
			custom, err := b.customBlocks(gctx)
			if err != nil {
				return fmt.Errorf("custom blocks: %w", err)
			}
			report.CustomBlocks = custom
			return nil
		})
	}
	if sections.Patterns {
		g.Go(func() (err error) {
			report.Patterns, err = b.theme.Patterns()
			return err
		})
	}
	if sections.Reusable {
		g.Go(func() error {
			frags, err := b.inv.ReusableFragments(gctx)
			if err != nil {
				return fmt.Errorf("reusable fragments: %w", err)
			}
			report.Reusable = frags
			return nil
		})
	}
	if sections.Colors {
		g.Go(func() (err error) {
			report.Colors, err = b.theme.Colors()
			return err
		})
	}
	if sections.Fonts {
		g.Go(func() (err error) {
			report.FontSizes, err = b.theme.FontSizes()
			return err
		})
	}
	if sections.Classes {
		g.Go(func() (err error) {
			report.Classes, err = b.theme.CSSClasses()
			return err
		})
	}

	err := g.Wait()
	event := activity.ScanEvent{Type: activity.ScanKitchenSink, Failed: err != nil, Timestamp: start.UTC()}
	if report.Usage != nil {
		event.Items = report.Usage.Items
		event.BlockTypes = report.Usage.Len()
		event.UsagePairs = report.Usage.Pairs()
	}
	b.inv.Record(ctx, event, time.Since(start))
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (b *Builder) customBlocks(ctx context.Context) ([]CustomBlock, error) {
	defs, err := b.theme.CustomBlocks()
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return []CustomBlock{}, nil
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	examples, err := b.inv.FindExamples(ctx, names)
	if err != nil {
		return nil, err
	}

	out := make([]CustomBlock, len(defs))
	for i, d := range defs {
		if node, ok := examples[d.Name]; ok {
			out[i] = CustomBlock{CustomBlock: d, Markup: blocks.Serialize(node), RealExample: true}
			continue
		}
		out[i] = CustomBlock{CustomBlock: d, Markup: ExampleMarkup(d)}
	}
	return out, nil
}

// ExampleMarkup builds block markup for d from its declared example, or
// from attribute defaults when the example has no attributes.
func ExampleMarkup(d theme.CustomBlock) string {
	attrs := map[string]any{}
	if d.Example != nil && len(d.Example.Attributes) > 0 {
		attrs = d.Example.Attributes
	} else {
		for name, attr := range d.Attributes {
			if attr.Default != nil {
				attrs[name] = attr.Default
			}
		}
	}
	node := &blocks.Node{Name: d.Name, Attrs: attrs}
	if d.Example != nil {
		node.InnerBlocks = exampleNodes(d.Example.InnerBlocks)
	}
	return blocks.Serialize(node)
}

func exampleNodes(inner []theme.ExampleInnerBlock) []*blocks.Node {
	if len(inner) == 0 {
		return nil
	}
	out := make([]*blocks.Node, len(inner))
	for i, ib := range inner {
		attrs := ib.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		out[i] = &blocks.Node{Name: ib.Name, Attrs: attrs, InnerBlocks: exampleNodes(ib.InnerBlocks)}
	}
	return out
}
