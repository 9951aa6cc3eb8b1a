package imagepick

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/ai/metrics"
)

type fetchResult struct {
	body        []byte
	contentType string
	err         error
}

type fakeFetcher struct {
	objects map[string]fetchResult
	calls   []string
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, string, error) {
	f.calls = append(f.calls, url)
	r, ok := f.objects[url]
	if !ok {
		return nil, "", errors.New("unexpected url " + url)
	}
	return r.body, r.contentType, r.err
}

type fakeLLM struct {
	response string
	err      error
	stats    *llm.CallStats
	requests []llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, *llm.CallStats, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", nil, f.err
	}
	if f.stats != nil {
		return f.response, f.stats, nil
	}
	return f.response, &llm.CallStats{}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func newFetcher(t *testing.T, good, broken, garbage []string) *fakeFetcher {
	t.Helper()
	objects := map[string]fetchResult{}
	img := pngBytes(t)
	for _, u := range good {
		objects[u] = fetchResult{body: img, contentType: "image/png"}
	}
	for _, u := range broken {
		objects[u] = fetchResult{err: errors.New("connection reset")}
	}
	for _, u := range garbage {
		objects[u] = fetchResult{body: []byte("<html>not an image</html>"), contentType: "text/html"}
	}
	return &fakeFetcher{objects: objects}
}

func TestFilter_SkipsBadCandidates(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "c.png"}, []string{"b.png"}, []string{"d.html"})
	f := NewFilter(fetcher)

	viable := f.Filter(context.Background(), []string{"a.png", "b.png", "c.png", "d.html"})
	assert.Equal(t, []string{"a.png", "c.png"}, viable)
}

func TestFilter_Idempotent(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "b.png"}, nil, nil)
	f := NewFilter(fetcher)
	ctx := context.Background()

	once := f.Filter(ctx, []string{"a.png", "b.png"})
	twice := f.Filter(ctx, once)
	assert.Equal(t, once, twice)
}

func TestFilter_AllBadYieldsEmpty(t *testing.T) {
	fetcher := newFetcher(t, nil, []string{"a.png", "b.png"}, nil)
	f := NewFilter(fetcher)

	viable := f.Filter(context.Background(), []string{"a.png", "b.png"})
	assert.Empty(t, viable)
}

func TestEncoder_MediaType(t *testing.T) {
	img := pngBytes(t)
	fetcher := &fakeFetcher{objects: map[string]fetchResult{
		"declared.png": {body: img, contentType: "image/png"},
		"sniffed.bin":  {body: img, contentType: "application/octet-stream"},
		"opaque.bin":   {body: []byte{0x00, 0x01, 0x02}, contentType: ""},
	}}
	e := NewEncoder(fetcher)
	ctx := context.Background()

	block, err := e.Encode(ctx, "declared.png")
	require.NoError(t, err)
	assert.Equal(t, llm.BlockKindImage, block.Kind)
	assert.Equal(t, "image/png", block.MediaType)

	block, err = e.Encode(ctx, "sniffed.bin")
	require.NoError(t, err)
	assert.Equal(t, "image/png", block.MediaType)

	block, err = e.Encode(ctx, "opaque.bin")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", block.MediaType, "unknown content falls back to jpeg")
}

func TestEncoder_FetchFailureIsHard(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string]fetchResult{
		"gone.jpg": {err: errors.New("503")},
	}}
	e := NewEncoder(fetcher)

	_, err := e.Encode(context.Background(), "gone.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImageFetch))
}

func newSelector(t *testing.T, fetcher *fakeFetcher, model *fakeLLM) *Selector {
	t.Helper()
	return NewSelector(model, NewFilter(fetcher), NewEncoder(fetcher), Config{})
}

func TestSelector_PicksByIndex(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "b.png", "c.png"}, nil, nil)
	model := &fakeLLM{response: "[2]"}
	s := newSelector(t, fetcher, model)

	sel, err := s.Select(context.Background(), "red summer dress", []string{"a.png", "b.png", "c.png"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePicked, sel.Outcome)
	assert.Equal(t, "b.png", sel.URL)

	// One leading text block, then one image block per survivor, in order.
	require.Len(t, model.requests, 1)
	blocks := model.requests[0].Blocks
	require.Len(t, blocks, 4)
	assert.Equal(t, llm.BlockKindText, blocks[0].Kind)
	assert.Equal(t, "red summer dress", blocks[0].Text)
	for _, b := range blocks[1:] {
		assert.Equal(t, llm.BlockKindImage, b.Kind)
	}
}

func TestSelector_NeverPicksFilteredURL(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "c.png"}, []string{"b.png"}, nil)
	// [2] now addresses the filtered list [a, c], not the raw candidates.
	model := &fakeLLM{response: "[2]"}
	s := newSelector(t, fetcher, model)

	sel, err := s.Select(context.Background(), "linen shirt", []string{"a.png", "b.png", "c.png"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePicked, sel.Outcome)
	assert.Equal(t, "c.png", sel.URL)
}

func TestSelector_OutOfRangeIsNoConfidentPick(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "b.png", "c.png"}, nil, nil)
	model := &fakeLLM{response: "[5]"}
	s := newSelector(t, fetcher, model)

	sel, err := s.Select(context.Background(), "boots", []string{"a.png", "b.png", "c.png"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoConfidentPick, sel.Outcome)
	assert.Empty(t, sel.URL)
}

func TestSelector_NoCandidatesSkipsModelCall(t *testing.T) {
	fetcher := newFetcher(t, nil, []string{"a.png"}, nil)
	model := &fakeLLM{response: "[1]"}
	s := newSelector(t, fetcher, model)

	sel, err := s.Select(context.Background(), "boots", []string{"a.png"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCandidates, sel.Outcome)
	assert.Empty(t, model.requests, "no model call without candidates")
}

func TestSelector_ModelErrorPropagates(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png"}, nil, nil)
	model := &fakeLLM{err: errors.New("upstream 500")}
	s := newSelector(t, fetcher, model)

	_, err := s.Select(context.Background(), "boots", []string{"a.png"})
	require.Error(t, err)
}

func TestSelector_MemoizesPerItem(t *testing.T) {
	fetcher := newFetcher(t, []string{"a.png", "b.png"}, nil, nil)
	model := &fakeLLM{response: "[1]"}
	s := newSelector(t, fetcher, model)
	ctx := context.Background()

	first, err := s.SelectForItem(ctx, "B0001", "wool coat", []string{"a.png", "b.png"})
	require.NoError(t, err)
	second, err := s.SelectForItem(ctx, "B0001", "wool coat", []string{"a.png", "b.png"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, model.requests, 1, "second pick should come from the memo")
}

func TestSelector_RecordsLLMMetrics(t *testing.T) {
	exporter := metrics.NewPrometheusExporter(metrics.Config{Registry: prometheus.NewRegistry()})
	fetcher := newFetcher(t, []string{"a.png"}, nil, nil)
	model := &fakeLLM{
		response: "[1]",
		stats:    &llm.CallStats{PromptTokens: 1200, CompletionTokens: 4, TotalDurationMs: 80},
	}
	s := NewSelector(model, NewFilter(fetcher), NewEncoder(fetcher), Config{Exporter: exporter})

	_, err := s.Select(context.Background(), "jacket", []string{"a.png"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `shopsight_llm_tokens_total{call="select",direction="prompt"} 1200`)
	assert.Contains(t, body, `shopsight_llm_tokens_total{call="select",direction="completion"} 4`)
}

func TestParseIndexResponse(t *testing.T) {
	tests := []struct {
		response string
		n        int
		want     int
		ok       bool
	}{
		{"[2]", 3, 2, true},
		{" [2] ", 3, 2, true},
		{"[ 1 ]", 3, 1, true},
		{"2", 3, 2, true},
		{"[5]", 3, 0, false},
		{"[0]", 3, 0, false},
		{"[-1]", 3, 0, false},
		{"[two]", 3, 0, false},
		{"the best image is [2]", 3, 0, false},
		{"", 3, 0, false},
	}

	for _, tt := range tests {
		got, ok := parseIndexResponse(tt.response, tt.n)
		assert.Equal(t, tt.ok, ok, "response %q", tt.response)
		if tt.ok {
			assert.Equal(t, tt.want, got, "response %q", tt.response)
		}
	}
}
