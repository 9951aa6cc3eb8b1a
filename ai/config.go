// Package ai assembles AI service configuration from the instance profile.
package ai

import (
	"errors"

	"github.com/renwaldo/shopsight/ai/embedding"
	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	LLM       llm.Config
	Embedding embedding.Config
	Refiner   RefinerConfig
	Picker    PickerConfig
	Enabled   bool
}

// RefinerConfig bounds the query-refinement completion call.
type RefinerConfig struct {
	MaxTokens   int     // default: 4000
	Temperature float32 // default: 0 (deterministic refinement)
}

// PickerConfig bounds the image-selection completion call.
type PickerConfig struct {
	MaxTokens   int     // default: 16; the response is a bracketed index
	Temperature float32 // default: 0 (deterministic selection)
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = llm.Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  p.LLMTimeout,
	}

	cfg.Embedding = embedding.Config{
		Provider:   p.EmbeddingProvider,
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	}

	cfg.Refiner = RefinerConfig{
		MaxTokens:   4000,
		Temperature: 0,
	}

	cfg.Picker = PickerConfig{
		MaxTokens:   16,
		Temperature: 0,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}

	return nil
}
