package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renwaldo/shopsight/ai/imagepick"
	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/ai/refine"
	"github.com/renwaldo/shopsight/kb"
	"github.com/renwaldo/shopsight/store"
)

type fakeRefiner struct {
	query   string
	err     error
	product *refine.ProductContext
}

func (f *fakeRefiner) Refine(_ context.Context, _ string, history []string, product *refine.ProductContext) (string, []string, error) {
	f.product = product
	if f.err != nil {
		return "", nil, f.err
	}
	updated := append([]string{f.query}, history...)
	if len(updated) > refine.HistoryLimit {
		updated = updated[:refine.HistoryLimit]
	}
	return f.query, updated, nil
}

type fakeRetriever struct {
	set kb.ResultSet
	err error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) (kb.ResultSet, error) {
	return f.set, f.err
}

type fakeCatalog struct {
	items map[string]*store.Item
}

func (f *fakeCatalog) GetItem(_ context.Context, identifier string) (*store.Item, error) {
	item, ok := f.items[store.SanitizeIdentifier(identifier)]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return item, nil
}

type fakeSelector struct {
	selection imagepick.Selection
	err       error
	itemIDs   []string
}

func (f *fakeSelector) SelectForItem(_ context.Context, itemID, _ string, _ []string) (imagepick.Selection, error) {
	f.itemIDs = append(f.itemIDs, itemID)
	if f.err != nil {
		return imagepick.Selection{}, f.err
	}
	return f.selection, nil
}

func resultSet(identifiers ...string) kb.ResultSet {
	results := make([]kb.Result, 0, len(identifiers))
	for _, id := range identifiers {
		results = append(results, kb.Result{Location: "s3://catalog-docs/items/" + id + ".txt"})
	}
	return kb.NewResultSet(results)
}

func TestTurn_HappyPath(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]*store.Item{
		"B0A1": {ID: "B0A1", Title: "Linen Shirt", ImageURLs: []string{"a.png", "b.png"}},
	}}
	selector := &fakeSelector{selection: imagepick.Selection{Outcome: imagepick.OutcomePicked, URL: "b.png"}}
	e := New(
		&fakeRefiner{query: "men linen shirt"},
		&fakeRetriever{set: resultSet("B0A1", "B0B2")},
		catalog,
		selector,
		nil,
		Config{},
	)

	result, err := e.Turn(context.Background(), &TurnRequest{Query: "shirts for men"})
	require.NoError(t, err)

	assert.Equal(t, "men linen shirt", result.RefinedQuery)
	assert.Equal(t, []string{"men linen shirt"}, result.History)
	assert.Equal(t, 2, result.RetrievalHits)
	require.NotNil(t, result.Product)
	assert.Equal(t, "B0A1", result.Product.ID)
	assert.Equal(t, "b.png", result.Product.SelectedImage)
	assert.Equal(t, ImageOutcomePicked, result.ImageOutcome)
	assert.NotEmpty(t, result.TurnID)
	assert.NotEmpty(t, result.SessionID)
}

func TestTurn_SkipsCurrentProduct(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]*store.Item{
		"B0A1": {ID: "B0A1", Title: "Shown Already"},
		"B0B2": {ID: "B0B2", Title: "Fresh Item", ImageURLs: []string{"x.png"}},
	}}
	selector := &fakeSelector{selection: imagepick.Selection{Outcome: imagepick.OutcomePicked, URL: "x.png"}}
	refiner := &fakeRefiner{query: "more like this"}
	e := New(refiner, &fakeRetriever{set: resultSet("B0A1", "B0B2")}, catalog, selector, nil, Config{})

	current := &Product{ID: "B0A1", Title: "Shown Already", SelectedImage: "shown.png"}
	result, err := e.Turn(context.Background(), &TurnRequest{Query: "show me another", Current: current})
	require.NoError(t, err)

	require.NotNil(t, result.Product)
	assert.Equal(t, "B0B2", result.Product.ID, "the shown item must not re-surface")

	// The shown product rides into refinement as context.
	require.NotNil(t, refiner.product)
	assert.Equal(t, "Shown Already", refiner.product.Title)
	assert.Equal(t, "shown.png", refiner.product.ImageURL)
}

func TestTurn_SkipsMissingCatalogRows(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]*store.Item{
		"B0C3": {ID: "B0C3", Title: "Only Real Item"},
	}}
	selector := &fakeSelector{selection: imagepick.Selection{Outcome: imagepick.OutcomeNoCandidates}}
	e := New(&fakeRefiner{query: "q"}, &fakeRetriever{set: resultSet("GHOST1", "GHOST2", "B0C3")}, catalog, selector, nil, Config{})

	result, err := e.Turn(context.Background(), &TurnRequest{Query: "anything"})
	require.NoError(t, err)
	require.NotNil(t, result.Product)
	assert.Equal(t, "B0C3", result.Product.ID)
	assert.Equal(t, ImageOutcomeNoCandidates, result.ImageOutcome)
	assert.Empty(t, result.Product.SelectedImage)
}

func TestTurn_NoHitsDegradesGracefully(t *testing.T) {
	e := New(&fakeRefiner{query: "q"}, &fakeRetriever{set: kb.NewResultSet(nil)}, &fakeCatalog{}, &fakeSelector{}, nil, Config{})

	result, err := e.Turn(context.Background(), &TurnRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Nil(t, result.Product)
	assert.Equal(t, ImageOutcomeNoItem, result.ImageOutcome)
	assert.Equal(t, "q", result.RefinedQuery, "refinement still reported")
}

func TestTurn_RefineFailurePropagates(t *testing.T) {
	e := New(&fakeRefiner{err: errors.New("llm down")}, &fakeRetriever{}, &fakeCatalog{}, &fakeSelector{}, nil, Config{})

	_, err := e.Turn(context.Background(), &TurnRequest{Query: "anything"})
	require.Error(t, err)
}

func TestTurn_EmptyQueryRejected(t *testing.T) {
	e := New(&fakeRefiner{}, &fakeRetriever{}, &fakeCatalog{}, &fakeSelector{}, nil, Config{})

	_, err := e.Turn(context.Background(), &TurnRequest{})
	require.Error(t, err)
}

// End-to-end shape with a real selector: an unfetchable candidate interleaved
// with fetchable ones must never be selected, whatever index the model picks.
func TestTurn_NeverSelectsFilteredImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	img := buf.Bytes()

	fetcher := &staticFetcher{objects: map[string][]byte{
		"ok1.png": img,
		"ok2.png": img,
		// dead.png is absent: fetch fails
	}}
	model := &scriptedLLM{response: "[2]"}
	selector := imagepick.NewSelector(model, imagepick.NewFilter(fetcher), imagepick.NewEncoder(fetcher), imagepick.Config{})

	catalog := &fakeCatalog{items: map[string]*store.Item{
		"B0A1": {ID: "B0A1", Title: "Jacket", ImageURLs: []string{"ok1.png", "dead.png", "ok2.png"}},
	}}
	e := New(&fakeRefiner{query: "jacket"}, &fakeRetriever{set: resultSet("B0A1")}, catalog, selector, nil, Config{})

	result, err := e.Turn(context.Background(), &TurnRequest{Query: "a jacket"})
	require.NoError(t, err)
	require.NotNil(t, result.Product)
	assert.Equal(t, "ok2.png", result.Product.SelectedImage, "[2] addresses the filtered list")
	assert.NotEqual(t, "dead.png", result.Product.SelectedImage)
}

type staticFetcher struct {
	objects map[string][]byte
}

func (f *staticFetcher) FetchBytes(_ context.Context, url string) ([]byte, string, error) {
	body, ok := f.objects[url]
	if !ok {
		return nil, "", errors.New("404")
	}
	return body, "image/png", nil
}

type scriptedLLM struct {
	response string
}

func (s *scriptedLLM) Complete(_ context.Context, _ llm.CompletionRequest) (string, *llm.CallStats, error) {
	return s.response, &llm.CallStats{}, nil
}
