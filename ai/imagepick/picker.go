package imagepick

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/renwaldo/shopsight/ai/cache"
	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/ai/metrics"
)

// The model must answer with only a 1-based index inside square brackets;
// anything else is treated as "no confident pick".
const selectSystemPrompt = `You are given a product description followed by several candidate product images.
Pick the single image that best matches the description and is the most visually appealing.
Respond with only the 1-based index of that image inside square brackets, for example: [2]
Do not output anything else.`

// Outcome distinguishes "no candidates survived filtering" from "candidates
// existed but the model produced no usable pick".
type Outcome int

const (
	// OutcomeNoCandidates means zero URLs survived the availability filter.
	OutcomeNoCandidates Outcome = iota
	// OutcomeNoConfidentPick means the model response was malformed or out of range.
	OutcomeNoConfidentPick
	// OutcomePicked means URL carries the selected image.
	OutcomePicked
)

// Selection is the result of one image pick.
type Selection struct {
	Outcome Outcome
	URL     string
}

// Config bounds the selection completion call.
type Config struct {
	MaxTokens   int
	Temperature float32
	Exporter    *metrics.PrometheusExporter // optional
}

// Selector picks the most representative image for an item via the LLM's
// bracketed-index protocol.
type Selector struct {
	llm     llm.Service
	filter  *Filter
	encoder *Encoder
	cfg     Config

	// Selections are stable per item; memoize them and collapse concurrent
	// picks for the same item into one model call.
	memo  *cache.LRU[string, Selection]
	group singleflight.Group
}

// NewSelector creates an image selector.
func NewSelector(service llm.Service, filter *Filter, encoder *Encoder, cfg Config) *Selector {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 16
	}
	return &Selector{
		llm:     service,
		filter:  filter,
		encoder: encoder,
		cfg:     cfg,
		memo:    cache.NewLRU[string, Selection](2000, 30*time.Minute),
	}
}

// SelectForItem memoizes Select per catalog identifier.
func (s *Selector) SelectForItem(ctx context.Context, itemID, referenceText string, candidateURLs []string) (Selection, error) {
	if sel, ok := s.memo.Get(itemID); ok {
		return sel, nil
	}

	v, err, _ := s.group.Do(itemID, func() (any, error) {
		sel, err := s.Select(ctx, referenceText, candidateURLs)
		if err != nil {
			return Selection{}, err
		}
		if sel.Outcome == OutcomePicked {
			s.memo.Set(itemID, sel)
		}
		return sel, nil
	})
	if err != nil {
		return Selection{}, err
	}
	return v.(Selection), nil
}

// Select filters the candidates, shows the survivors to the model alongside
// the reference text, and returns the model's pick. Malformed model output is
// recovered locally as OutcomeNoConfidentPick, never an error.
func (s *Selector) Select(ctx context.Context, referenceText string, candidateURLs []string) (Selection, error) {
	viable := s.filter.Filter(ctx, candidateURLs)
	if len(viable) == 0 {
		return Selection{Outcome: OutcomeNoCandidates}, nil
	}

	blocks := make([]llm.ContentBlock, 0, len(viable)+1)
	blocks = append(blocks, llm.TextBlock(referenceText))
	for _, u := range viable {
		block, err := s.encoder.Encode(ctx, u)
		if err != nil {
			// The filter just fetched this URL; a miss now is a race or a
			// transient fault and must surface.
			return Selection{}, err
		}
		blocks = append(blocks, block)
	}

	text, stats, err := s.llm.Complete(ctx, llm.CompletionRequest{
		System:      selectSystemPrompt,
		Blocks:      blocks,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return Selection{}, err
	}
	if s.cfg.Exporter != nil && stats != nil {
		s.cfg.Exporter.ObserveLLMCall("select",
			time.Duration(stats.TotalDurationMs)*time.Millisecond,
			stats.PromptTokens, stats.CompletionTokens)
	}

	index, ok := parseIndexResponse(text, len(viable))
	if !ok {
		slog.Warn("imagepick: unusable model response", "response", text, "candidates", len(viable))
		return Selection{Outcome: OutcomeNoConfidentPick}, nil
	}

	return Selection{Outcome: OutcomePicked, URL: viable[index-1]}, nil
}

// parseIndexResponse validates the bracketed-index protocol strictly: bracket
// stripping and integer parsing only, no speculative repair. The returned
// index is 1-based and bounds-checked against n.
func parseIndexResponse(response string, n int) (int, bool) {
	trimmed := strings.TrimSpace(response)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	trimmed = strings.TrimSpace(trimmed)

	index, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	if index < 1 || index > n {
		return 0, false
	}
	return index, true
}
