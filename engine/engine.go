// Package engine composes the per-turn search pipeline: refine the query,
// retrieve from the knowledge base, resolve the first unseen catalog item,
// and pick its representative image.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/ai/imagepick"
	"github.com/renwaldo/shopsight/ai/metrics"
	"github.com/renwaldo/shopsight/ai/refine"
	"github.com/renwaldo/shopsight/kb"
	"github.com/renwaldo/shopsight/store"
)

// QueryRefiner produces one cleaned search query plus the updated bounded
// history.
type QueryRefiner interface {
	Refine(ctx context.Context, userText string, history []string, product *refine.ProductContext) (string, []string, error)
}

// ImageSelector picks the representative image for a catalog item.
type ImageSelector interface {
	SelectForItem(ctx context.Context, itemID, referenceText string, candidateURLs []string) (imagepick.Selection, error)
}

// Catalog resolves identifiers to catalog items.
type Catalog interface {
	GetItem(ctx context.Context, identifier string) (*store.Item, error)
}

// Config bounds the engine.
type Config struct {
	TopK int // knowledge-base hits per query (default: 5)
}

// Engine runs one search turn at a time. It holds no per-conversation state;
// history and the current product travel with the request, so independent
// conversations may run concurrently.
type Engine struct {
	refiner   QueryRefiner
	retriever kb.Retriever
	catalog   Catalog
	selector  ImageSelector
	exporter  *metrics.PrometheusExporter
	topK      int
}

// New creates a search engine.
func New(refiner QueryRefiner, retriever kb.Retriever, catalog Catalog, selector ImageSelector, exporter *metrics.PrometheusExporter, cfg Config) *Engine {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		refiner:   refiner,
		retriever: retriever,
		catalog:   catalog,
		selector:  selector,
		exporter:  exporter,
		topK:      topK,
	}
}

// Turn executes one refine-then-fetch-then-pick cycle.
func (e *Engine) Turn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if req.Query == "" {
		return nil, errors.New("query text is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result := &TurnResult{
		TurnID:       shortuuid.New(),
		SessionID:    sessionID,
		ImageOutcome: ImageOutcomeNoItem,
	}

	startTime := time.Now()

	var productCtx *refine.ProductContext
	if req.Current != nil && req.Current.SelectedImage != "" {
		productCtx = &refine.ProductContext{
			Title:    req.Current.Title,
			ImageURL: req.Current.SelectedImage,
		}
	}

	refined, history, err := e.refiner.Refine(ctx, req.Query, req.History, productCtx)
	if err != nil {
		e.observeTurn("refine_failed", startTime)
		return nil, errors.Wrap(err, "query refinement failed")
	}
	result.RefinedQuery = refined
	result.History = history

	set, err := e.retriever.Retrieve(ctx, refined, e.topK)
	if err != nil {
		e.observeTurn("retrieve_failed", startTime)
		return nil, errors.Wrap(err, "knowledge base retrieval failed")
	}

	identifiers := kb.ExtractIdentifiers(set)
	result.RetrievalHits = len(identifiers)
	if e.exporter != nil {
		e.exporter.ObserveRetrieval(len(identifiers))
	}

	item, err := e.firstUnseenItem(ctx, identifiers, req.Current)
	if err != nil {
		e.observeTurn("catalog_failed", startTime)
		return nil, err
	}
	if item == nil {
		slog.Debug("engine: no unseen item for query", "session", sessionID, "hits", len(identifiers))
		e.observeTurn(ImageOutcomeNoItem, startTime)
		return result, nil
	}

	selection, err := e.selector.SelectForItem(ctx, item.ID, item.Title, item.ImageURLs)
	if err != nil {
		e.observeTurn("select_failed", startTime)
		return nil, errors.Wrap(err, "image selection failed")
	}

	product := &Product{
		ID:              item.ID,
		Title:           item.Title,
		ImageCandidates: item.ImageURLs,
	}
	switch selection.Outcome {
	case imagepick.OutcomePicked:
		product.SelectedImage = selection.URL
		result.ImageOutcome = ImageOutcomePicked
	case imagepick.OutcomeNoCandidates:
		result.ImageOutcome = ImageOutcomeNoCandidates
	default:
		result.ImageOutcome = ImageOutcomeNoConfidentPick
	}
	result.Product = product

	if e.exporter != nil {
		e.exporter.ObserveImageSelection(result.ImageOutcome)
	}
	e.observeTurn(result.ImageOutcome, startTime)

	return result, nil
}

// firstUnseenItem walks the ranked identifiers and resolves the first one
// that exists in the catalog and is not the currently shown product, so a
// reinforcing query does not re-surface the same item. Identifiers without a
// catalog row are skipped, not fatal.
func (e *Engine) firstUnseenItem(ctx context.Context, identifiers []string, current *Product) (*store.Item, error) {
	var currentID string
	if current != nil {
		currentID = store.SanitizeIdentifier(current.ID)
	}

	for _, identifier := range identifiers {
		if currentID != "" && store.SanitizeIdentifier(identifier) == currentID {
			continue
		}

		item, err := e.catalog.GetItem(ctx, identifier)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				slog.Warn("engine: retrieval hit without catalog row", "identifier", identifier)
				continue
			}
			return nil, errors.Wrapf(err, "catalog lookup failed for %s", identifier)
		}
		return item, nil
	}
	return nil, nil
}

func (e *Engine) observeTurn(outcome string, startTime time.Time) {
	if e.exporter != nil {
		e.exporter.ObserveTurn(outcome, time.Since(startTime))
	}
}
