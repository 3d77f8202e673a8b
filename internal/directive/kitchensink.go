package directive

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/kitchensink"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/render"
)

// KitchenSinkName is the directive name of the kitchen sink.
const KitchenSinkName = "kitchen_sink"

// KitchenSinkParams are the section toggles of the kitchen sink directive.
// Every section defaults to shown; a toggle is on only when set to "yes".
type KitchenSinkParams struct {
	ShowBlocks       bool
	ShowCustomBlocks bool
	ShowPatterns     bool
	ShowReusable     bool
	ShowColors       bool
	ShowFonts        bool
	ShowClasses      bool
}

// DecodeKitchenSinkParams reads the show_* attributes.
func DecodeKitchenSinkParams(attrs Attrs) KitchenSinkParams {
	return KitchenSinkParams{
		ShowBlocks:       attrs.Yes("show_blocks", true),
		ShowCustomBlocks: attrs.Yes("show_custom_blocks", true),
		ShowPatterns:     attrs.Yes("show_patterns", true),
		ShowReusable:     attrs.Yes("show_reusable", true),
		ShowColors:       attrs.Yes("show_colors", true),
		ShowFonts:        attrs.Yes("show_fonts", true),
		ShowClasses:      attrs.Yes("show_classes", true),
	}
}

// Sections converts the toggles into report sections.
func (p KitchenSinkParams) Sections() kitchensink.Sections {
	return kitchensink.Sections{
		Blocks:       p.ShowBlocks,
		CustomBlocks: p.ShowCustomBlocks,
		Patterns:     p.ShowPatterns,
		Reusable:     p.ShowReusable,
		Colors:       p.ShowColors,
		Fonts:        p.ShowFonts,
		Classes:      p.ShowClasses,
	}
}

// KitchenSink renders the selected catalog sections inline.
type KitchenSink struct {
	builder *kitchensink.Builder
	render  *render.Renderer
}

// NewKitchenSink returns the kitchen sink directive.
func NewKitchenSink(b *kitchensink.Builder, r *render.Renderer) *KitchenSink {
	return &KitchenSink{builder: b, render: r}
}

func (d *KitchenSink) Name() string { return KitchenSinkName }

func (d *KitchenSink) Render(ctx context.Context, attrs Attrs) (string, error) {
	report, err := d.builder.Build(ctx, DecodeKitchenSinkParams(attrs).Sections())
	if err != nil {
		return "", err
	}
	return d.render.KitchenSink(report)
}
