package pipeline

import (
	"context"
	"fmt"

	"github.com/comigor/invoicebot-go/internal/llm"
	"github.com/comigor/invoicebot-go/internal/prompt"
	"github.com/comigor/invoicebot-go/pkg/invoicing"
)

// Summarizer turns an API result into the text sent back to the user.
type Summarizer struct {
	client  llm.Client
	model   string
	prompts *prompt.Builder
}

func NewSummarizer(client llm.Client, model string, prompts *prompt.Builder) *Summarizer {
	return &Summarizer{client: client, model: model, prompts: prompts}
}

// Summarize returns the model's reply verbatim.
func (s *Summarizer) Summarize(ctx context.Context, text string, result invoicing.Result) (string, error) {
	user, err := s.prompts.Summary(text, result)
	if err != nil {
		return "", err
	}
	reply, err := llm.Complete(ctx, s.client, s.model, s.prompts.SummarySystem(), user)
	if err != nil {
		return "", fmt.Errorf("summarize result: %w", err)
	}
	return reply, nil
}
