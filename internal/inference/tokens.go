package inference

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens with the cl100k_base encoding.
type TokenCounter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewTokenCounter loads the encoding. If it cannot be loaded every count is 0.
func NewTokenCounter() *TokenCounter {
	// 如果失败，使用 nil，后续会跳过 token 统计
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		tokenizer = nil
	}
	return &TokenCounter{tokenizer: tokenizer}
}

// Count returns the number of tokens in text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.tokenizer == nil {
		return 0
	}
	return len(c.tokenizer.Encode(text, nil, nil))
}
