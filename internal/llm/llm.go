package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when a completion comes back without any choice.
var ErrNoChoices = errors.New("llm returned no choices")

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config)
}

// Complete sends a single system + user exchange and returns the content of the first choice.
func Complete(ctx context.Context, c Client, model, system, user string) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
