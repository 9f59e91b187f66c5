package llm

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenRouter defaults
const (
	DefaultModel   = "google/gemini-2.0-flash-001"
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

// ErrMissingToken is returned when no API key is configured.
var ErrMissingToken = errors.New("llm: missing API key")

// ModelConfig LLM model config
type ModelConfig struct {
	ModelName string `json:"model_name"`
	Token     string `json:"token"`
	BaseURL   string `json:"base_url"`
}

// withDefaults fills in the OpenRouter model and endpoint when unset.
func (c ModelConfig) withDefaults() ModelConfig {
	if c.ModelName == "" {
		c.ModelName = DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	return c
}

// DisplayName gets model display name
func (c ModelConfig) DisplayName() string {
	c = c.withDefaults()
	return fmt.Sprintf("%s @ %s", c.ModelName, c.BaseURL)
}

// CreateLLM creates an OpenAI-compatible chat model. The API key travels
// with the returned client only.
func CreateLLM(config ModelConfig) (llms.Model, error) {
	if config.Token == "" {
		return nil, ErrMissingToken
	}
	config = config.withDefaults()
	model, err := openai.New(
		openai.WithModel(config.ModelName),
		openai.WithToken(config.Token),
		openai.WithBaseURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create model %s: %w", config.ModelName, err)
	}
	return model, nil
}
