package store

import (
	"context"
	"time"

	"github.com/renwaldo/shopsight/ai/cache"
	"github.com/renwaldo/shopsight/internal/profile"
)

// Store provides database access to catalog items and item documents.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Catalog lookups repeat across turns of the same conversation.
	itemCache *cache.LRU[string, *Item]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:    driver,
		profile:   profile,
		itemCache: cache.NewLRU[string, *Item](1000, 10*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// GetItem returns the catalog item for an identifier, or ErrItemNotFound.
// The identifier is sanitized before use since it originates from
// query-influenced data paths.
func (s *Store) GetItem(ctx context.Context, identifier string) (*Item, error) {
	id := SanitizeIdentifier(identifier)
	if id == "" {
		return nil, ErrItemNotFound
	}

	if item, ok := s.itemCache.Get(id); ok {
		return item, nil
	}

	item, err := s.driver.GetItem(ctx, &FindItem{ID: &id})
	if err != nil {
		return nil, err
	}

	s.itemCache.Set(id, item)
	return item, nil
}

func (s *Store) UpsertItem(ctx context.Context, upsert *UpsertItem) (*Item, error) {
	item, err := s.driver.UpsertItem(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.itemCache.Remove(item.ID)
	return item, nil
}

func (s *Store) UpsertItemDocument(ctx context.Context, upsert *UpsertItemDocument) (*ItemDocument, error) {
	return s.driver.UpsertItemDocument(ctx, upsert)
}

func (s *Store) SearchItemDocuments(ctx context.Context, search *SearchItemDocuments) ([]*ItemDocumentMatch, error) {
	return s.driver.SearchItemDocuments(ctx, search)
}
