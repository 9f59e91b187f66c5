package inference

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 10 * time.Second

// Completer sends one prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMCompleter adapts a langchaingo model to Completer.
type LLMCompleter struct {
	model   llms.Model
	timeout time.Duration
}

// NewLLMCompleter wraps model. A zero timeout uses DefaultCallTimeout.
func NewLLMCompleter(model llms.Model, timeout time.Duration) *LLMCompleter {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &LLMCompleter{model: model, timeout: timeout}
}

// Complete calls the model with temperature 0.
func (c *LLMCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(0))
}
