package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Inventory.ChunkSize != 10 {
		t.Errorf("expected chunk size 10, got %d", cfg.Inventory.ChunkSize)
	}
	if cfg.Inventory.ReferenceMatching != "textual" {
		t.Errorf("expected textual matching, got %q", cfg.Inventory.ReferenceMatching)
	}
	if cfg.Auth.RequiredCapability != "manage_options" {
		t.Errorf("expected manage_options, got %q", cfg.Auth.RequiredCapability)
	}
	if cfg.Auth.NonceTTL != 24*time.Hour {
		t.Errorf("expected 24h nonce ttl, got %s", cfg.Auth.NonceTTL)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9000
site:
  baseURL: https://example.test
theme:
  dir: /srv/theme
  editorColorPalette:
    - slug: primary
      name: Primary
      color: "#000"
inventory:
  referenceMatching: structural
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BI_SERVER_PORT", "9100")
	t.Setenv("BI_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override not applied, port=%d", cfg.Server.Port)
	}
	if cfg.Site.BaseURL != "https://example.test" {
		t.Errorf("unexpected base url %q", cfg.Site.BaseURL)
	}
	if cfg.Inventory.ReferenceMatching != "structural" {
		t.Errorf("unexpected matching %q", cfg.Inventory.ReferenceMatching)
	}
	if cfg.Inventory.ChunkSize != 10 {
		t.Errorf("default chunk size lost, got %d", cfg.Inventory.ChunkSize)
	}
	if len(cfg.Theme.EditorColorPalette) != 1 || cfg.Theme.EditorColorPalette[0].Slug != "primary" {
		t.Errorf("unexpected palette %+v", cfg.Theme.EditorColorPalette)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownMatching(t *testing.T) {
	t.Setenv("BI_INVENTORY_REFERENCE_MATCHING", "fuzzy")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestFixtureDriverNeedsPath(t *testing.T) {
	t.Setenv("BI_CONTENT_DRIVER", "fixture")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without fixture path")
	}
	t.Setenv("BI_CONTENT_FIXTURE", "testdata/site.yaml")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Content.Driver != "fixture" || cfg.Content.Fixture != "testdata/site.yaml" {
		t.Errorf("unexpected content config %+v", cfg.Content)
	}
}

func TestStaticKeysAndNonceStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
auth:
  nonceStore: memory
  staticKeys:
    - name: dev
      key: dev-secret
      capabilities: [manage_options]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.NonceStore != "memory" || len(cfg.Auth.StaticKeys) != 1 {
		t.Fatalf("unexpected auth config %+v", cfg.Auth)
	}
	if got := cfg.Auth.StaticKeys[0].Capabilities; len(got) != 1 || got[0] != "manage_options" {
		t.Errorf("unexpected capabilities %v", got)
	}

	t.Setenv("BI_AUTH_NONCE_STORE", "memcached")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown nonce store")
	}
}
