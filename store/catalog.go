package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrItemNotFound indicates no catalog item exists for an identifier.
var ErrItemNotFound = errors.New("catalog item not found")

// Item is one catalog entry. Identifiers are opaque, externally assigned
// alphanumeric keys (ASIN-like) that double as the per-item document filename
// stem in object storage.
type Item struct {
	ID        string
	Title     string
	ImageURLs []string
	CreatedTs int64
	UpdatedTs int64
}

type FindItem struct {
	ID    *string
	Limit *int
}

type UpsertItem struct {
	ID        string
	Title     string
	ImageURLs []string
}

// ItemDocument is the per-item text document the knowledge base retrieves
// over. Location must be `<identifier>.<ext>` in object storage so retrieval
// hits can be mapped back to catalog identifiers.
type ItemDocument struct {
	ID        int64
	ItemID    string
	Location  string
	Content   string
	Embedding []float32
	Model     string
	CreatedTs int64
	UpdatedTs int64
}

type UpsertItemDocument struct {
	ItemID    string
	Location  string
	Content   string
	Embedding []float32
	Model     string
}

// SearchItemDocuments is a vector similarity search over item documents.
type SearchItemDocuments struct {
	Embedding []float32
	Limit     int
}

// ItemDocumentMatch is one scored knowledge-base hit.
type ItemDocumentMatch struct {
	Document *ItemDocument
	Score    float32
}

// Driver is an interface for store driver.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	GetItem(ctx context.Context, find *FindItem) (*Item, error)
	UpsertItem(ctx context.Context, upsert *UpsertItem) (*Item, error)

	UpsertItemDocument(ctx context.Context, upsert *UpsertItemDocument) (*ItemDocument, error)
	SearchItemDocuments(ctx context.Context, search *SearchItemDocuments) ([]*ItemDocumentMatch, error)
}

// SanitizeIdentifier strips everything but alphanumeric runes from an
// identifier before it reaches the database.
func SanitizeIdentifier(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier))
	for _, r := range identifier {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
