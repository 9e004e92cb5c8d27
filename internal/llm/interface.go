package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the one completion call the synthesizer and summarizer make.
// *openai.Client and *BreakerClient both satisfy it; tests queue canned replies.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var (
	_ Client = (*openai.Client)(nil)
	_ Client = (*BreakerClient)(nil)
)
