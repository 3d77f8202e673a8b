// Package benchmark contains Go benchmarks for the block parser and the
// inventory passes, measuring throughput and allocation behaviour over
// synthetic sites.
package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/blocks"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
)

// fragmentBase is the first id used for reusable fragments.
const fragmentBase = 100000

// pageBody returns a nested body of roughly n blocks, referencing fragment
// ref when ref is non-zero.
func pageBody(n int, ref content.ItemID) string {
	var sb strings.Builder
	sb.WriteString(`<!-- wp:group {"layout":{"type":"constrained"}} --><div class="wp-block-group">`)
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0:
			sb.WriteString(`<!-- wp:heading {"level":2} --><h2>Section</h2><!-- /wp:heading -->`)
		case 1:
			sb.WriteString(`<!-- wp:paragraph --><p>Lorem ipsum dolor sit amet.</p><!-- /wp:paragraph -->`)
		case 2:
			sb.WriteString(`<!-- wp:columns --><div class="wp-block-columns"><!-- wp:column --><div class="wp-block-column"><!-- wp:image {"id":7} /--></div><!-- /wp:column --></div><!-- /wp:columns -->`)
		case 3:
			fmt.Fprintf(&sb, `<!-- wp:acme/card-%d {"title":"Card"} /-->`, i%7)
		}
	}
	sb.WriteString(`</div><!-- /wp:group -->`)
	if ref != 0 {
		fmt.Fprintf(&sb, `<!-- wp:block {"ref":%d} /-->`, ref)
	}
	return sb.String()
}

// newSite builds a store of published items, each referencing one of the
// reusable fragments.
func newSite(pages, fragments, blocksPerPage int) *content.MemoryStore {
	store := content.NewMemoryStore(nil)
	for f := 0; f < fragments; f++ {
		store.Put(content.Item{
			ID:          content.ItemID(fragmentBase + f),
			ContentType: content.TypeFragment,
			Status:      content.StatusPublish,
			Title:       fmt.Sprintf("Fragment %d", f),
			Body:        `<!-- wp:buttons --><div class="wp-block-buttons"><!-- wp:button /--></div><!-- /wp:buttons -->`,
		})
	}
	for p := 0; p < pages; p++ {
		contentType := content.TypePage
		if p%2 == 1 {
			contentType = content.TypePost
		}
		store.Put(content.Item{
			ID:          content.ItemID(p + 1),
			ContentType: contentType,
			Status:      content.StatusPublish,
			Title:       fmt.Sprintf("Item %d", p),
			Slug:        fmt.Sprintf("item-%d", p),
			Body:        pageBody(blocksPerPage, content.ItemID(fragmentBase+p%fragments)),
		})
	}
	return store
}

func newService(b *testing.B, store content.Store, matching string) *inventory.Service {
	b.Helper()
	svc, err := inventory.New(store, inventory.Config{BaseURL: "https://example.test", ReferenceMatching: matching})
	if err != nil {
		b.Fatal(err)
	}
	return svc
}

// BenchmarkParse measures block grammar parsing for bodies of increasing
// size.
func BenchmarkParse(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		body := pageBody(n, 1)
		b.Run(fmt.Sprintf("blocks_%d", n), func(b *testing.B) {
			b.SetBytes(int64(len(body)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				blocks.Parse(body)
			}
		})
	}
}

// BenchmarkBuildUsageIndex measures a full usage pass over sites of
// increasing size.
func BenchmarkBuildUsageIndex(b *testing.B) {
	for _, pages := range []int{100, 1000} {
		svc := newService(b, newSite(pages, 10, 40), "textual")
		b.Run(fmt.Sprintf("items_%d", pages), func(b *testing.B) {
			ctx := context.Background()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := svc.BuildUsageIndex(ctx, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBuildReferenceIndex compares the textual and structural
// reference matchers.
func BenchmarkBuildReferenceIndex(b *testing.B) {
	store := newSite(1000, 10, 40)
	for _, mode := range []string{"textual", "structural"} {
		svc := newService(b, store, mode)
		b.Run(mode, func(b *testing.B) {
			ctx := context.Background()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := svc.BuildReferenceIndex(ctx, fragmentBase+3); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExport measures CSV rendering of a prebuilt usage index.
func BenchmarkExport(b *testing.B) {
	svc := newService(b, newSite(1000, 10, 40), "textual")
	idx, err := svc.BuildUsageIndex(context.Background(), nil)
	if err != nil {
		b.Fatal(err)
	}
	now := svc.Now()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := inventory.Export(idx, now); err != nil {
			b.Fatal(err)
		}
	}
}
