package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
	"github.com/lib/pq"
)

// SQLStore reads content from the content_types and content_items tables
// (see internal/schema).
type SQLStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewSQLStore(db *postgres.Client) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: slog.Default().With("component", "content-store"),
	}
}

func (s *SQLStore) Types(ctx context.Context) ([]Type, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, is_public, is_builtin FROM content_types ORDER BY is_builtin, position, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing content types: %w", err)
	}
	defer rows.Close()

	var types []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.Name, &t.Public, &t.Builtin); err != nil {
			return nil, fmt.Errorf("scanning content type row: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *SQLStore) PublishedIDs(ctx context.Context, contentType string) ([]ItemID, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id FROM content_items
		 WHERE content_type = $1 AND status = $2
		 ORDER BY published_at DESC NULLS LAST, id DESC`,
		contentType, StatusPublish,
	)
	if err != nil {
		return nil, fmt.Errorf("listing published %s items: %w", contentType, err)
	}
	defer rows.Close()

	ids := make([]ItemID, 0)
	for rows.Next() {
		var id ItemID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const itemColumns = `id, content_type, status, title, slug, body, COALESCE(published_at, 'epoch'::timestamptz)`

func scanItem(scan func(dest ...any) error) (*Item, error) {
	var item Item
	if err := scan(&item.ID, &item.ContentType, &item.Status, &item.Title, &item.Slug, &item.Body, &item.PublishedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLStore) Get(ctx context.Context, id ItemID) (*Item, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE id = $1`, id,
	)
	item, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading item %d: %w", id, err)
	}
	return item, nil
}

func (s *SQLStore) Items(ctx context.Context, ids []ItemID) (map[ItemID]*Item, error) {
	out := make(map[ItemID]*Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE id = ANY($1)`, pq.Array(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("loading %d items: %w", len(ids), err)
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		out[item.ID] = item
	}
	return out, rows.Err()
}

func (s *SQLStore) Body(ctx context.Context, id ItemID) (string, error) {
	var body string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT body FROM content_items WHERE id = $1`, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("item %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading body of item %d: %w", id, err)
	}
	return body, nil
}

// Upsert writes item, used by the CLI to seed content from fixtures.
func (s *SQLStore) Upsert(ctx context.Context, item Item) error {
	var published any
	if !item.PublishedAt.IsZero() {
		published = item.PublishedAt
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO content_items (id, content_type, status, title, slug, body, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   content_type = EXCLUDED.content_type, status = EXCLUDED.status,
		   title = EXCLUDED.title, slug = EXCLUDED.slug, body = EXCLUDED.body,
		   published_at = EXCLUDED.published_at, updated_at = NOW()`,
		item.ID, item.ContentType, item.Status, item.Title, item.Slug, item.Body, published,
	)
	if err != nil {
		return fmt.Errorf("upserting item %d: %w", item.ID, err)
	}
	return nil
}

// UpsertType registers a content type.
func (s *SQLStore) UpsertType(ctx context.Context, t Type) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO content_types (name, is_public, is_builtin) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET is_public = EXCLUDED.is_public, is_builtin = EXCLUDED.is_builtin`,
		t.Name, t.Public, t.Builtin,
	)
	if err != nil {
		return fmt.Errorf("upserting content type %s: %w", t.Name, err)
	}
	return nil
}

// SyncSequence moves the item id sequence past the largest stored id, after
// items were written with explicit ids.
func (s *SQLStore) SyncSequence(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('content_items', 'id'), GREATEST((SELECT MAX(id) FROM content_items), 1))`,
	)
	if err != nil {
		return fmt.Errorf("syncing item id sequence: %w", err)
	}
	return nil
}

// EnsureItem returns the id of the item of contentType with item.Slug,
// creating item when none exists.
func (s *SQLStore) EnsureItem(ctx context.Context, item Item) (ItemID, bool, error) {
	var id ItemID
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id FROM content_items WHERE content_type = $1 AND slug = $2 ORDER BY id LIMIT 1`,
		item.ContentType, item.Slug,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("looking up item %s: %w", item.Slug, err)
	}
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO content_items (content_type, status, title, slug, body, published_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		item.ContentType, item.Status, item.Title, item.Slug, item.Body,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("creating item %s: %w", item.Slug, err)
	}
	s.logger.Info("item created", "id", id, "slug", item.Slug)
	return id, true, nil
}
