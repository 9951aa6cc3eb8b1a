// Package imagepick selects the single product image that best represents a
// catalog item, out of the item's candidate image URLs.
package imagepick

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/renwaldo/shopsight/objstore"
)

// Filter validates that candidate image URLs are fetchable and decodable.
type Filter struct {
	fetcher objstore.Fetcher
}

// NewFilter creates an availability filter over the given fetcher.
func NewFilter(fetcher objstore.Fetcher) *Filter {
	return &Filter{fetcher: fetcher}
}

// Filter keeps only URLs whose bytes fetch and decode as an image, preserving
// relative order. Per-URL failures are skipped, never fatal; an empty result
// means "no viable image" and is a value, not an error.
func (f *Filter) Filter(ctx context.Context, urls []string) []string {
	viable := make([]string, 0, len(urls))
	for _, u := range urls {
		body, _, err := f.fetcher.FetchBytes(ctx, u)
		if err != nil {
			slog.Debug("imagepick: candidate not fetchable, skipping", "url", u, "error", err)
			continue
		}
		if _, err := imaging.Decode(bytes.NewReader(body)); err != nil {
			slog.Debug("imagepick: candidate not decodable, skipping", "url", u, "error", err)
			continue
		}
		viable = append(viable, u)
	}
	return viable
}
