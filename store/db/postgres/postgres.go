// Package postgres implements the store driver on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import the postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/internal/profile"
)

// DB is a postgres-backed store driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a postgres connection described by the profile DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required for postgres driver")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return &DB{db: db, profile: profile}, nil
}

// Migrate creates the catalog schema. The embedding column dimension follows
// the configured embedding model.
func (d *DB) Migrate(ctx context.Context) error {
	dimensions := d.profile.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS item (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			image_urls TEXT[] NOT NULL DEFAULT '{}',
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS item_document (
			id BIGSERIAL PRIMARY KEY,
			item_id TEXT NOT NULL REFERENCES item (id),
			location TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d),
			model TEXT NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (item_id, model)
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_item_document_embedding
			ON item_document USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration failed: %s", firstLine(stmt))
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}

// placeholder returns the numbered postgres placeholder, e.g. $3.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns a comma-joined run of placeholders $1..$n.
func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}
