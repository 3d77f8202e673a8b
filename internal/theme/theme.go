// Package theme reads the active theme's design catalog from disk: color
// palette, font sizes, CSS class names, custom blocks and patterns.
package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
)

// Color is one palette entry.
type Color = config.ColorEntry

// FontSize is one font size preset.
type FontSize = config.FontSizeEntry

// Catalog reads theme assets rooted at a directory.
type Catalog struct {
	dir          string
	editorColors []Color
	editorSizes  []FontSize
	logger       *slog.Logger
}

// New returns a Catalog for cfg.Dir. A missing directory yields empty
// listings rather than errors.
func New(cfg config.ThemeConfig) *Catalog {
	return &Catalog{
		dir:          cfg.Dir,
		editorColors: cfg.EditorColorPalette,
		editorSizes:  cfg.EditorFontSizes,
		logger:       slog.Default().With("component", "theme"),
	}
}

type themeJSON struct {
	Settings struct {
		Color struct {
			Palette json.RawMessage `json:"palette"`
		} `json:"color"`
		Typography struct {
			FontSizes json.RawMessage `json:"fontSizes"`
		} `json:"typography"`
	} `json:"settings"`
}

type rawFontSize struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Size any    `json:"size"`
}

// Colors returns theme.json palette entries followed by the editor palette,
// one per slug. A slug keeps its first position and its last value.
func (c *Catalog) Colors() ([]Color, error) {
	tj, err := c.readThemeJSON()
	if err != nil {
		return nil, err
	}
	var colors []Color
	if tj != nil {
		if colors, err = decodePresets[Color](tj.Settings.Color.Palette); err != nil {
			return nil, fmt.Errorf("decoding color palette: %w", err)
		}
	}
	colors = append(colors, c.editorColors...)
	return uniqueBySlug(colors, func(col Color) string { return col.Slug }), nil
}

// FontSizes returns theme.json font sizes followed by the editor sizes, one
// per slug.
func (c *Catalog) FontSizes() ([]FontSize, error) {
	tj, err := c.readThemeJSON()
	if err != nil {
		return nil, err
	}
	var sizes []FontSize
	if tj != nil {
		raw, err := decodePresets[rawFontSize](tj.Settings.Typography.FontSizes)
		if err != nil {
			return nil, fmt.Errorf("decoding font sizes: %w", err)
		}
		for _, r := range raw {
			sizes = append(sizes, FontSize{Slug: r.Slug, Name: r.Name, Size: sizeString(r.Size)})
		}
	}
	sizes = append(sizes, c.editorSizes...)
	return uniqueBySlug(sizes, func(s FontSize) string { return s.Slug }), nil
}

func (c *Catalog) readThemeJSON() (*themeJSON, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, "theme.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading theme.json: %w", err)
	}
	var tj themeJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parsing theme.json: %w", err)
	}
	return &tj, nil
}

// presetOrigins is the order origin-keyed preset objects are merged in.
var presetOrigins = []string{"default", "theme", "custom"}

// decodePresets accepts either a plain list or an object keyed by origin.
func decodePresets[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var byOrigin map[string][]T
	if err := json.Unmarshal(raw, &byOrigin); err != nil {
		return nil, err
	}
	var out []T
	for _, origin := range presetOrigins {
		out = append(out, byOrigin[origin]...)
	}
	return out, nil
}

func uniqueBySlug[T any](entries []T, slug func(T) string) []T {
	index := make(map[string]int, len(entries))
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		s := slug(e)
		if s == "" {
			continue
		}
		if i, ok := index[s]; ok {
			out[i] = e
			continue
		}
		index[s] = len(out)
		out = append(out, e)
	}
	return out
}

func sizeString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return fmt.Sprintf("%gpx", s)
	default:
		data, _ := json.Marshal(s)
		return string(data)
	}
}
