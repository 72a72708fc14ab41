// Package insights generates natural-language summaries of alert batches,
// abstracted behind an LLM backend interface for testability.
package insights

import (
	"context"
)

// GenerateRequest defines the input for an LLM generation call.
type GenerateRequest struct {
	Prompt      string
	SystemMsg   string
	Temperature float64
	MaxTokens   int
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateResponse holds the result of an LLM generation call.
type GenerateResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// LLMBackend defines the interface for LLM text generation.
type LLMBackend interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Name() string
}
