package theme

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

var classPattern = regexp.MustCompile(`\.([a-zA-Z0-9_-]+)(?:\s|:|,|\{|&)`)

// stylesheets are checked relative to the theme root.
var stylesheets = []string{"style.css", "assets/css/style.css", "css/style.css"}

// scssPattern selects SCSS sources relative to the theme root.
const scssPattern = "{assets,gutenberg-blocks}/**/*.scss"

// vendoredPattern matches dependency trees that are not theme sources.
const vendoredPattern = "**/node_modules/**"

// CSSClasses returns the sorted, unique class selectors found in the theme
// stylesheets and SCSS sources. node_modules trees are skipped.
func (c *Catalog) CSSClasses() ([]string, error) {
	files := make([]string, 0, len(stylesheets))
	for _, name := range stylesheets {
		files = append(files, filepath.Join(c.dir, name))
	}
	found, err := c.scssFiles()
	if err != nil {
		return nil, err
	}
	files = append(files, found...)

	seen := make(map[string]struct{})
	for _, path := range files {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, m := range classPattern.FindAllStringSubmatch(string(data), -1) {
			seen[m[1]] = struct{}{}
		}
	}

	classes := make([]string, 0, len(seen))
	for name := range seen {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	return classes, nil
}

func (c *Catalog) scssFiles() ([]string, error) {
	root := c.dir
	if root == "" {
		root = "."
	}
	matches, err := doublestar.Glob(os.DirFS(root), scssPattern)
	if err != nil {
		return nil, fmt.Errorf("scanning scss sources in %s: %w", root, err)
	}
	out := make([]string, 0, len(matches))
	for _, rel := range matches {
		if vendored, _ := doublestar.Match(vendoredPattern, rel); vendored {
			continue
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out, nil
}
