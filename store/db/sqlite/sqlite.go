// Package sqlite implements a catalog-only store driver for local and test
// deployments. Vector search over item documents requires postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	// Import the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/renwaldo/shopsight/internal/profile"
	"github.com/renwaldo/shopsight/store"
)

// ErrVectorSearchUnsupported is returned by SearchItemDocuments; similarity
// search needs the pgvector-backed postgres driver.
var ErrVectorSearchUnsupported = errors.New("vector search is not supported by the sqlite driver")

// DB is a sqlite-backed store driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the sqlite database file described by the profile DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required for sqlite driver")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db %s", profile.DSN)
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS item (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			image_urls TEXT NOT NULL DEFAULT '[]',
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item_document (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id TEXT NOT NULL REFERENCES item (id),
			location TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL,
			UNIQUE (item_id, model)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "sqlite migration failed")
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) GetItem(ctx context.Context, find *store.FindItem) (*store.Item, error) {
	query := `SELECT id, title, image_urls, created_ts, updated_ts FROM item WHERE id = ? LIMIT 1`

	id := ""
	if find.ID != nil {
		id = *find.ID
	}

	var item store.Item
	var imageURLs string
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Title,
		&imageURLs,
		&item.CreatedTs,
		&item.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "failed to get item")
	}

	if err := json.Unmarshal([]byte(imageURLs), &item.ImageURLs); err != nil {
		return nil, errors.Wrapf(err, "corrupt image_urls for item %s", item.ID)
	}

	return &item, nil
}

func (d *DB) UpsertItem(ctx context.Context, upsert *store.UpsertItem) (*store.Item, error) {
	imageURLs, err := json.Marshal(upsert.ImageURLs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode image urls")
	}

	now := time.Now().Unix()
	stmt := `
		INSERT INTO item (id, title, image_urls, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET
			title = excluded.title,
			image_urls = excluded.image_urls,
			updated_ts = excluded.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ID, upsert.Title, string(imageURLs), now, now); err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}

	return d.GetItem(ctx, &store.FindItem{ID: &upsert.ID})
}

// UpsertItemDocument stores the document text and location only; embeddings
// live in postgres.
func (d *DB) UpsertItemDocument(ctx context.Context, upsert *store.UpsertItemDocument) (*store.ItemDocument, error) {
	now := time.Now().Unix()
	stmt := `
		INSERT INTO item_document (item_id, location, content, model, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id, model)
		DO UPDATE SET
			location = excluded.location,
			content = excluded.content,
			updated_ts = excluded.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ItemID, upsert.Location, upsert.Content, upsert.Model, now, now); err != nil {
		return nil, errors.Wrap(err, "failed to upsert item document")
	}

	doc := &store.ItemDocument{
		ItemID:    upsert.ItemID,
		Location:  upsert.Location,
		Content:   upsert.Content,
		Model:     upsert.Model,
		CreatedTs: now,
		UpdatedTs: now,
	}
	return doc, nil
}

func (d *DB) SearchItemDocuments(_ context.Context, _ *store.SearchItemDocuments) ([]*store.ItemDocumentMatch, error) {
	return nil, ErrVectorSearchUnsupported
}
