package llm

import (
	"encoding/base64"
	"fmt"
)

// BlockKind discriminates the content block variants.
type BlockKind string

const (
	BlockKindText  BlockKind = "text"
	BlockKindImage BlockKind = "image"
)

// ContentBlock is one unit of a multimodal completion request, either text or
// an image payload. Ordering within a request is meaningful: the model
// associates a caption with the image block that follows it.
type ContentBlock struct {
	Kind      BlockKind
	Text      string // set when Kind == BlockKindText
	MediaType string // set when Kind == BlockKindImage, e.g. "image/jpeg"
	Data      []byte // raw image bytes when Kind == BlockKindImage
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockKindText, Text: text}
}

// ImageBlock creates an image content block from raw bytes.
func ImageBlock(mediaType string, data []byte) ContentBlock {
	return ContentBlock{Kind: BlockKindImage, MediaType: mediaType, Data: data}
}

// DataURL encodes an image block as a data URL for OpenAI-compatible
// image_url parts.
func (b ContentBlock) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", b.MediaType, base64.StdEncoding.EncodeToString(b.Data))
}
