package kb

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/ai/embedding"
	"github.com/renwaldo/shopsight/store"
)

// VectorRetriever answers queries from the pgvector-backed item document
// store, embedding the query text first.
type VectorRetriever struct {
	embedder embedding.Service
	store    *store.Store
}

// NewVectorRetriever creates a knowledge-base retriever over the store.
func NewVectorRetriever(embedder embedding.Service, st *store.Store) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, store: st}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) (ResultSet, error) {
	if query == "" {
		return NewResultSet(nil), nil
	}
	if k <= 0 {
		k = 5
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return ResultSet{}, errors.Wrap(err, "failed to embed query")
	}

	matches, err := r.store.SearchItemDocuments(ctx, &store.SearchItemDocuments{
		Embedding: vector,
		Limit:     k,
	})
	if err != nil {
		return ResultSet{}, errors.Wrap(err, "knowledge base search failed")
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			RefID:    strconv.FormatInt(m.Document.ID, 10),
			Score:    m.Score,
			Location: m.Document.Location,
		})
	}

	slog.Debug("KB: retrieval done", "query_len", len(query), "k", k, "hits", len(results))
	return NewResultSet(results), nil
}
