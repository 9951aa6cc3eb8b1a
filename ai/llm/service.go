package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// CallStats represents statistics for a single completion call.
type CallStats struct {
	// PromptTokens is the number of tokens in the input prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the generated response.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"total_tokens"`

	// TotalDurationMs is the total wall-clock time for the request.
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// CompletionRequest is one multimodal completion: a system instruction plus
// ordered text/image content blocks.
type CompletionRequest struct {
	System      string
	Blocks      []ContentBlock
	MaxTokens   int
	Temperature float32
}

// Service is the multimodal completion service interface.
type Service interface {
	// Complete performs a synchronous completion. Returns generated text,
	// statistics, and error.
	Complete(ctx context.Context, req CompletionRequest) (string, *CallStats, error)
}

// Config represents LLM service configuration.
type Config struct {
	Provider string // openai, deepseek, siliconflow, dashscope, openrouter, zai, ollama
	Model    string // must accept image content blocks
	APIKey   string
	BaseURL  string
	Timeout  int // request timeout in seconds (default: 120)
}

type service struct {
	client  *openai.Client
	model   string
	timeout int
}

// Provider default base URLs for OpenAI-compatible endpoints.
var providerBaseURLs = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"dashscope":   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"zai":         "https://open.bigmodel.cn/api/paas/v4",
	"ollama":      "http://localhost:11434",
}

// NewService creates a new multimodal completion Service. All supported
// providers speak the OpenAI-compatible chat protocol.
func NewService(cfg *Config) (Service, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("LLM model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = newHTTPClient(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if def, ok := providerBaseURLs[cfg.Provider]; ok {
			baseURL = def
		}
	}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &service{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

func (s *service) Complete(ctx context.Context, req CompletionRequest) (string, *CallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
	defer cancel()

	slog.Debug("LLM: completion request",
		"model", s.model,
		"blocks", len(req.Blocks),
		"max_tokens", req.MaxTokens,
	)

	startTime := time.Now()

	chatReq := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: convertBlocks(req.Blocks),
			},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		slog.Error("LLM: completion request failed", "error", err)
		return "", nil, fmt.Errorf("LLM completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("LLM: empty response")
		return "", nil, fmt.Errorf("empty response from LLM")
	}

	stats := &CallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		TotalDurationMs:  time.Since(startTime).Milliseconds(),
	}

	return resp.Choices[0].Message.Content, stats, nil
}

// convertBlocks maps content blocks onto OpenAI-compatible message parts.
// Image bytes travel as base64 data URLs.
func convertBlocks(blocks []ContentBlock) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case BlockKindImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    b.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: b.Text,
			})
		}
	}
	return parts
}

// newHTTPClient builds the transport for one service. The client-level
// timeout mirrors the configured request timeout so it never undercuts the
// per-call context deadline.
func newHTTPClient(timeoutSeconds int) *http.Client {
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
