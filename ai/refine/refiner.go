// Package refine turns a shopper's utterance plus conversational context into
// one optimized vector-search query.
package refine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/renwaldo/shopsight/ai/imagepick"
	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/ai/metrics"
)

// HistoryLimit bounds the retained query history: the current refined query
// plus at most two prior ones.
const HistoryLimit = 3

// historyPromptWindow caps how many supplied history entries reach the
// prompt. Callers supply most-recent-first.
const historyPromptWindow = 4

const refineSystemPrompt = `You are a shopping search assistant for fashion apparel.
Produce exactly one descriptive text query optimized for vector similarity search over apparel attributes: age group, gender, color, material, and style.
Ground every attribute in the supplied inputs; never invent attributes that are not present in the current query, the past queries, or the product image.
The result must be the current query updated by the past queries and image context, not replaced by them.
Output only the query text, nothing else.`

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	escapeArtifactRegex = regexp.MustCompile(`\\+`)
)

// ProductContext carries the previously shown product into the refinement.
type ProductContext struct {
	Title    string
	ImageURL string
}

// Config bounds the refinement completion call.
type Config struct {
	MaxTokens   int
	Temperature float32
	Exporter    *metrics.PrometheusExporter // optional
}

// Refiner produces cleaned search queries from multimodal context.
type Refiner struct {
	llm     llm.Service
	encoder *imagepick.Encoder
	cfg     Config
}

// NewRefiner creates a query refiner.
func NewRefiner(service llm.Service, encoder *imagepick.Encoder, cfg Config) *Refiner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	return &Refiner{llm: service, encoder: encoder, cfg: cfg}
}

// Refine returns the cleaned refined query and the updated bounded history.
// An LLM failure is a hard error: falling back to the raw text would silently
// degrade search quality. A product image that cannot be fetched propagates
// as imagepick.ErrImageFetch.
func (r *Refiner) Refine(ctx context.Context, userText string, history []string, product *ProductContext) (string, []string, error) {
	blocks := make([]llm.ContentBlock, 0, historyPromptWindow+3)
	blocks = append(blocks, llm.TextBlock("Current query: "+userText))

	window := history
	if len(window) > historyPromptWindow {
		window = window[:historyPromptWindow]
	}
	for _, past := range window {
		blocks = append(blocks, llm.TextBlock("Past query: "+past))
	}

	if product != nil {
		blocks = append(blocks, llm.TextBlock("Previously selected product: "+product.Title))
		imageBlock, err := r.encoder.Encode(ctx, product.ImageURL)
		if err != nil {
			return "", nil, err
		}
		blocks = append(blocks, imageBlock)
	}

	raw, stats, err := r.llm.Complete(ctx, llm.CompletionRequest{
		System:      refineSystemPrompt,
		Blocks:      blocks,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", nil, err
	}
	if r.cfg.Exporter != nil && stats != nil {
		r.cfg.Exporter.ObserveLLMCall("refine",
			time.Duration(stats.TotalDurationMs)*time.Millisecond,
			stats.PromptTokens, stats.CompletionTokens)
	}

	cleaned := CleanQuery(raw)
	slog.Debug("refine: query refined", "history_len", len(history), "with_product", product != nil)

	updated := make([]string, 0, HistoryLimit)
	updated = append(updated, cleaned)
	for _, past := range history {
		if len(updated) == HistoryLimit {
			break
		}
		updated = append(updated, past)
	}

	return cleaned, updated, nil
}

// CleanQuery strips markup remnants from raw model output: HTML-like tags,
// literal escape artifacts, and surrounding whitespace.
func CleanQuery(raw string) string {
	cleaned := htmlTagPattern.ReplaceAllString(raw, "")
	cleaned = escapeArtifactRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
