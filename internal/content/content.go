// Package content models the site's content store: typed items with a
// publication status and a serialized block body. The inventory only reads
// from it.
package content

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ItemID identifies a content item.
type ItemID int64

// Well-known content types.
const (
	TypePost       = "post"
	TypePage       = "page"
	TypeAttachment = "attachment"
	// TypeFragment is the type of reusable block fragments.
	TypeFragment = "wp_block"
)

// StatusPublish is the only status the inventory enumerates.
const StatusPublish = "publish"

// Type describes a content type.
type Type struct {
	Name    string `yaml:"name" json:"name"`
	Public  bool   `yaml:"public" json:"public"`
	Builtin bool   `yaml:"builtin" json:"builtin"`
}

// Item is one unit of content.
type Item struct {
	ID          ItemID    `yaml:"id" json:"id"`
	ContentType string    `yaml:"type" json:"type"`
	Status      string    `yaml:"status" json:"status"`
	Title       string    `yaml:"title" json:"title"`
	Slug        string    `yaml:"slug" json:"slug"`
	Body        string    `yaml:"body" json:"body"`
	PublishedAt time.Time `yaml:"publishedAt" json:"published_at"`
}

// Store is the read side of the content store.
type Store interface {
	// Types returns every registered content type. Custom types come before
	// builtin ones.
	Types(ctx context.Context) ([]Type, error)
	// PublishedIDs returns the ids of all published items of contentType,
	// without pagination. Unknown types yield an empty list.
	PublishedIDs(ctx context.Context, contentType string) ([]ItemID, error)
	// Get returns one item or an error wrapping errors.ErrNotFound.
	Get(ctx context.Context, id ItemID) (*Item, error)
	// Items returns the subset of ids that exist, keyed by id.
	Items(ctx context.Context, ids []ItemID) (map[ItemID]*Item, error)
	// Body returns an item's raw body or an error wrapping
	// errors.ErrNotFound.
	Body(ctx context.Context, id ItemID) (string, error)
}

// Ref is the display metadata attached to a usage entry.
type Ref struct {
	ID          ItemID `json:"id"`
	Title       string `json:"title"`
	ContentType string `json:"post_type"`
	EditURL     string `json:"edit_link"`
	ViewURL     string `json:"view_link"`
}

// Linker builds admin edit links and public permalinks.
type Linker struct {
	BaseURL string
}

// NewLinker trims any trailing slash from baseURL.
func NewLinker(baseURL string) Linker {
	return Linker{BaseURL: strings.TrimRight(baseURL, "/")}
}

// EditURL returns the admin edit link for id.
func (l Linker) EditURL(id ItemID) string {
	return fmt.Sprintf("%s/wp-admin/post.php?post=%d&action=edit", l.BaseURL, id)
}

// ViewURL returns the public permalink for item.
func (l Linker) ViewURL(item *Item) string {
	if item.Slug == "" {
		return fmt.Sprintf("%s/?p=%d", l.BaseURL, item.ID)
	}
	return fmt.Sprintf("%s/%s/", l.BaseURL, item.Slug)
}

// Ref builds display metadata for item. contentType overrides the item's own
// type when the caller enumerated it under a specific key.
func (l Linker) Ref(item *Item, contentType string) Ref {
	if contentType == "" {
		contentType = item.ContentType
	}
	return Ref{
		ID:          item.ID,
		Title:       item.Title,
		ContentType: contentType,
		EditURL:     l.EditURL(item.ID),
		ViewURL:     l.ViewURL(item),
	}
}
