package imagepick

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/objstore"
)

// ErrImageFetch indicates a required image failed to download. Unlike filter
// skips, this is a hard failure: the image was already known to exist, so a
// miss here is real infrastructure trouble.
var ErrImageFetch = errors.New("image fetch failed")

// Encoder turns an image URL into an image content block for the LLM.
type Encoder struct {
	fetcher objstore.Fetcher
}

// NewEncoder creates an encoder over the given fetcher.
func NewEncoder(fetcher objstore.Fetcher) *Encoder {
	return &Encoder{fetcher: fetcher}
}

// Encode fetches the image bytes and wraps them as a base64 content block.
// The media type follows the fetched content; JPEG when it cannot be told.
func (e *Encoder) Encode(ctx context.Context, url string) (llm.ContentBlock, error) {
	body, contentType, err := e.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return llm.ContentBlock{}, errors.Wrapf(ErrImageFetch, "%s: %v", url, err)
	}
	return llm.ImageBlock(mediaType(contentType, body), body), nil
}

func mediaType(declared string, body []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if sniffed := http.DetectContentType(body); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/jpeg"
}
