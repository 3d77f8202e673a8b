package theme

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pattern is a block pattern registered by the theme.
type Pattern struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Categories  []string `json:"categories"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
}

// Patterns reads patterns/*.php. Files without a Title header are skipped.
// The pattern body is everything after the closing "?>" of the header.
func (c *Catalog) Patterns() ([]Pattern, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "patterns", "*.php"))
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	sort.Strings(files)

	out := make([]Pattern, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		p, ok := parsePattern(string(data))
		if !ok {
			c.logger.Debug("skipping pattern without title header", "file", path)
			continue
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(filepath.Base(path), ".php")
		}
		out = append(out, p)
	}
	return out, nil
}

func parsePattern(src string) (Pattern, bool) {
	header, body := src, ""
	if i := strings.Index(src, "?>"); i >= 0 {
		header, body = src[:i], src[i+2:]
	}

	var p Pattern
	sc := bufio.NewScanner(strings.NewReader(header))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimLeft(line, "/*# ")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			p.Title = value
		case "Slug":
			p.Name = value
		case "Categories":
			p.Categories = splitList(value)
		case "Description":
			p.Description = value
		}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	p.Content = strings.TrimSpace(body)
	return p, p.Title != ""
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
