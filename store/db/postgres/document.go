package postgres

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/store"
)

// UpsertItemDocument inserts or updates the knowledge-base document for an item.
func (d *DB) UpsertItemDocument(ctx context.Context, upsert *store.UpsertItemDocument) (*store.ItemDocument, error) {
	now := time.Now().Unix()

	stmt := `
		INSERT INTO item_document (item_id, location, content, embedding, model, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (item_id, model)
		DO UPDATE SET
			location = EXCLUDED.location,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts
	`

	doc := &store.ItemDocument{
		ItemID:    upsert.ItemID,
		Location:  upsert.Location,
		Content:   upsert.Content,
		Embedding: upsert.Embedding,
		Model:     upsert.Model,
	}
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ItemID,
		upsert.Location,
		upsert.Content,
		pgvector.NewVector(upsert.Embedding),
		upsert.Model,
		now,
		now,
	).Scan(&doc.ID, &doc.CreatedTs, &doc.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert item document")
	}

	return doc, nil
}

// SearchItemDocuments runs cosine similarity search over item documents.
// Results come back in the database's relevance order, best first.
func (d *DB) SearchItemDocuments(ctx context.Context, search *store.SearchItemDocuments) ([]*store.ItemDocumentMatch, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, item_id, location, content, model, created_ts, updated_ts,
			1 - (embedding <=> $1) AS score
		FROM item_document
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(search.Embedding), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search item documents")
	}
	defer rows.Close()

	matches := []*store.ItemDocumentMatch{}
	for rows.Next() {
		var doc store.ItemDocument
		var score float32
		err := rows.Scan(
			&doc.ID,
			&doc.ItemID,
			&doc.Location,
			&doc.Content,
			&doc.Model,
			&doc.CreatedTs,
			&doc.UpdatedTs,
			&score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan item document")
		}
		matches = append(matches, &store.ItemDocumentMatch{Document: &doc, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}
