package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/store"
)

func (d *DB) GetItem(ctx context.Context, find *store.FindItem) (*store.Item, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `
		SELECT id, title, image_urls, created_ts, updated_ts
		FROM item
		WHERE ` + strings.Join(where, " AND ") + `
		LIMIT 1
	`

	var item store.Item
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&item.ID,
		&item.Title,
		pq.Array(&item.ImageURLs),
		&item.CreatedTs,
		&item.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "failed to get item")
	}

	return &item, nil
}

func (d *DB) UpsertItem(ctx context.Context, upsert *store.UpsertItem) (*store.Item, error) {
	now := time.Now().Unix()

	stmt := `
		INSERT INTO item (id, title, image_urls, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			image_urls = EXCLUDED.image_urls,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`

	item := &store.Item{
		ID:        upsert.ID,
		Title:     upsert.Title,
		ImageURLs: upsert.ImageURLs,
	}
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ID,
		upsert.Title,
		pq.Array(upsert.ImageURLs),
		now,
		now,
	).Scan(&item.CreatedTs, &item.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}

	return item, nil
}
