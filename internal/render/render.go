// Package render turns inventory results into HTML: usage chunks for the
// dashboard loader, block listing tables for directives, the kitchen-sink
// sections and the full dashboard page.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/kitchensink"
)

//go:embed templates/*.html
var templateFS embed.FS

// visibleRefs is how many usages are listed before the rest collapse.
const visibleRefs = 3

// UniqueHeading titles the combined table of a unique block listing.
const UniqueHeading = "Unique blocks for these parameters"

// BlockTable is one table of a block listing. Item is nil for the combined
// unique table, which is titled by Heading instead.
type BlockTable struct {
	Item    *content.Ref
	Heading string
	Blocks  []string
}

// BlockListing is the output of the block list directive.
type BlockListing struct {
	Tables []BlockTable
}

// Page is the data of the dashboard page.
type Page struct {
	Report      *kitchensink.Report
	Incremental bool
	AjaxBase    string
	BlocksNonce string
	ExportNonce string
	Total       int
	ChunkSize   int
}

type codeSection struct {
	ID   string
	Code string
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("render").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

var funcs = template.FuncMap{
	"head": func(refs []content.Ref) []content.Ref {
		if len(refs) <= visibleRefs {
			return refs
		}
		return refs[:visibleRefs]
	},
	"tail": func(refs []content.Ref) []content.Ref {
		if len(refs) <= visibleRefs {
			return nil
		}
		return refs[visibleRefs:]
	},
	"json": func(v any) string {
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	},
	// preview renders stored block markup. Content comes from the site's own
	// store and is shown to administrators only.
	"preview": func(markup string) template.HTML {
		return template.HTML(blocks.RenderHTML(blocks.Parse(markup)))
	},
	"codeBlock": func(id, code string) codeSection {
		return codeSection{ID: id, Code: code}
	},
	"slug": Slug,
}

// Slug lowercases s and replaces every run of other characters with "-".
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// UsageChunk renders one window of usage buckets.
func (r *Renderer) UsageChunk(buckets []*inventory.Bucket) (string, error) {
	return r.execute("usage_chunk", buckets)
}

// BlockListing renders block tables inside the listing wrapper. A listing
// without tables renders the "No blocks found." message.
func (r *Renderer) BlockListing(listing BlockListing) (string, error) {
	return r.execute("block_listing", listing)
}

// KitchenSink renders the enabled report sections with every usage bucket
// inline.
func (r *Renderer) KitchenSink(report *kitchensink.Report) (string, error) {
	return r.execute("kitchen_sink", Page{Report: report})
}

// Dashboard writes the full admin page. Usage buckets are loaded by the
// page script in chunks.
func (r *Renderer) Dashboard(w io.Writer, page Page) error {
	page.Incremental = true
	if page.Report != nil && page.Report.Usage != nil {
		page.Total = page.Report.Usage.Len()
	}
	if page.ChunkSize <= 0 {
		page.ChunkSize = inventory.DefaultChunkSize
	}
	if err := r.tmpl.ExecuteTemplate(w, "dashboard", page); err != nil {
		return fmt.Errorf("rendering dashboard: %w", err)
	}
	return nil
}
