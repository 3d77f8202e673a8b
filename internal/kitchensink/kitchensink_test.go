package kitchensink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/theme"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
)

func newBuilder(t *testing.T, items ...content.Item) *Builder {
	t.Helper()
	store := content.NewMemoryStore(nil)
	for _, item := range items {
		item.Status = content.StatusPublish
		store.Put(item)
	}
	svc, err := inventory.New(store, inventory.Config{BaseURL: "https://example.test"})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	files := map[string]string{
		"gutenberg-blocks/hero/block.json": `{"name":"acme/hero","attributes":{"title":{"type":"string","default":"Hi"}}}`,
		"gutenberg-blocks/card/block.json": `{"name":"acme/card","example":{"attributes":{"tone":"warm"},"innerBlocks":[{"name":"core/paragraph"}]}}`,
		"style.css":                        ".card { }",
	}
	for rel, data := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return NewBuilder(svc, theme.New(config.ThemeConfig{Dir: dir}))
}

func TestBuildOnlyRequestedSections(t *testing.T) {
	b := newBuilder(t, content.Item{ID: 1, ContentType: content.TypePage, Body: `<!-- wp:paragraph /-->`})

	report, err := b.Build(context.Background(), Sections{Classes: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Usage != nil || report.CustomBlocks != nil || report.Reusable != nil {
		t.Errorf("disabled sections were computed: %+v", report)
	}
	if len(report.Classes) != 1 || report.Classes[0] != "card" {
		t.Errorf("unexpected classes %v", report.Classes)
	}
}

func TestCustomBlockMarkup(t *testing.T) {
	b := newBuilder(t, content.Item{
		ID: 1, ContentType: content.TypePage,
		Body: `<!-- wp:acme/hero {"title":"Live"} /-->`,
	})

	report, err := b.Build(context.Background(), AllSections())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.CustomBlocks) != 2 {
		t.Fatalf("expected 2 custom blocks, got %d", len(report.CustomBlocks))
	}
	// Directories are read in name order: card, hero.
	card, hero := report.CustomBlocks[0], report.CustomBlocks[1]
	if card.RealExample {
		t.Error("card has no real example")
	}
	if want := `<!-- wp:acme/card {"tone":"warm"} --><!-- wp:paragraph /--><!-- /wp:acme/card -->`; card.Markup != want {
		t.Errorf("card markup = %s", card.Markup)
	}
	if !hero.RealExample || hero.Markup != `<!-- wp:acme/hero {"title":"Live"} /-->` {
		t.Errorf("unexpected hero %+v", hero)
	}
	if report.Usage == nil || report.Usage.Len() != 1 {
		t.Errorf("expected usage index, got %+v", report.Usage)
	}
}

func TestExampleMarkupFromDefaults(t *testing.T) {
	got := ExampleMarkup(theme.CustomBlock{
		Name:       "acme/badge",
		Attributes: map[string]theme.BlockAttribute{"label": {Default: "New"}, "size": {Type: "number"}},
	})
	if want := `<!-- wp:acme/badge {"label":"New"} /-->`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if got := ExampleMarkup(theme.CustomBlock{Name: "acme/plain"}); got != `<!-- wp:acme/plain /-->` {
		t.Errorf("got %s", got)
	}
}
