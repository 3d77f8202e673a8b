// Package directive implements the embeddable directives that can be placed
// in item bodies as [name attr="value"] tags. Directives are looked up in an
// explicit table built at startup; each decodes its attributes into a fixed
// parameter struct.
package directive

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
)

// Attrs are the raw attributes of one directive occurrence.
type Attrs map[string]string

// Bool reads a boolean attribute. 1, true, yes and on (any case) are true;
// anything else present is false.
func (a Attrs) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Yes reads a yes/no toggle. Only "yes" (any case) is on; anything else
// present is off.
func (a Attrs) Yes(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}

// String reads a trimmed string attribute.
func (a Attrs) String(key string) string {
	return strings.TrimSpace(a[key])
}

// Directive renders HTML for one directive occurrence.
type Directive interface {
	Name() string
	Render(ctx context.Context, attrs Attrs) (string, error)
}

// Registry maps directive names to implementations.
type Registry struct {
	byName map[string]Directive
}

// NewRegistry builds a registry. Later directives replace earlier ones with
// the same name.
func NewRegistry(directives ...Directive) *Registry {
	r := &Registry{byName: make(map[string]Directive, len(directives))}
	for _, d := range directives {
		r.byName[d.Name()] = d
	}
	return r
}

// Lookup returns the directive registered under name.
func (r *Registry) Lookup(name string) (Directive, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names lists registered directive names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render runs the named directive.
func (r *Registry) Render(ctx context.Context, name string, attrs Attrs) (string, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return "", apperrors.Newf(apperrors.ErrNotFound, 404, "unknown directive %q", name)
	}
	return d.Render(ctx, attrs)
}
