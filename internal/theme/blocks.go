package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CustomBlock is the block.json metadata of a block shipped by the theme.
type CustomBlock struct {
	Name        string                     `json:"name"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Category    string                     `json:"category"`
	Icon        any                        `json:"icon"`
	Attributes  map[string]BlockAttribute  `json:"attributes"`
	Example     *BlockExample              `json:"example"`
	Supports    map[string]json.RawMessage `json:"supports"`
	Dir         string                     `json:"dir_path"`
}

// BlockAttribute is one attribute definition from block.json.
type BlockAttribute struct {
	Type    any `json:"type,omitempty"`
	Default any `json:"default,omitempty"`
}

// BlockExample is the "example" member of block.json.
type BlockExample struct {
	Attributes  map[string]any      `json:"attributes,omitempty"`
	InnerBlocks []ExampleInnerBlock `json:"innerBlocks,omitempty"`
}

// ExampleInnerBlock is a nested block inside a block.json example.
type ExampleInnerBlock struct {
	Name        string              `json:"name"`
	Attributes  map[string]any      `json:"attributes,omitempty"`
	InnerBlocks []ExampleInnerBlock `json:"innerBlocks,omitempty"`
}

// CustomBlocks lists the blocks under gutenberg-blocks/, one per directory
// that carries a block.json (build/<dir>/block.json preferred).
func (c *Catalog) CustomBlocks() ([]CustomBlock, error) {
	root := filepath.Join(c.dir, "gutenberg-blocks")
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []CustomBlock{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make([]CustomBlock, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		block, ok, err := readBlockJSON(dir, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, block)
		}
	}
	return out, nil
}

func readBlockJSON(dir, base string) (CustomBlock, bool, error) {
	var data []byte
	var err error
	for _, path := range []string{
		filepath.Join(dir, "build", base, "block.json"),
		filepath.Join(dir, "block.json"),
	} {
		data, err = os.ReadFile(path)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return CustomBlock{}, false, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if err != nil {
		return CustomBlock{}, false, nil
	}

	var block CustomBlock
	if err := json.Unmarshal(data, &block); err != nil {
		return CustomBlock{}, false, fmt.Errorf("parsing block.json in %s: %w", dir, err)
	}
	if block.Name == "" {
		block.Name = base
	}
	if block.Title == "" {
		block.Title = titleFromDir(base)
	}
	if block.Attributes == nil {
		block.Attributes = map[string]BlockAttribute{}
	}
	if block.Supports == nil {
		block.Supports = map[string]json.RawMessage{}
	}
	block.Dir = dir
	return block, true, nil
}

// titleFromDir turns "hero-banner" into "Hero banner".
func titleFromDir(name string) string {
	title := strings.ReplaceAll(name, "-", " ")
	if title == "" {
		return title
	}
	return strings.ToUpper(title[:1]) + title[1:]
}

// SortedAttributeNames returns b's attribute names in lexical order.
func (b CustomBlock) SortedAttributeNames() []string {
	names := make([]string, 0, len(b.Attributes))
	for name := range b.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IconName returns the icon when block.json declares it as a string.
func (b CustomBlock) IconName() string {
	if s, ok := b.Icon.(string); ok {
		return s
	}
	return ""
}
