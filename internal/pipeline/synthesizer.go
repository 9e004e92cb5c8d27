package pipeline

import (
	"context"
	"fmt"

	"github.com/comigor/invoicebot-go/internal/instruction"
	"github.com/comigor/invoicebot-go/internal/llm"
	"github.com/comigor/invoicebot-go/internal/logger"
	"github.com/comigor/invoicebot-go/internal/prompt"
	"github.com/comigor/invoicebot-go/pkg/invoicing"
)

// Synthesizer asks the LLM which API call a message stands for.
type Synthesizer struct {
	client  llm.Client
	model   string
	prompts *prompt.Builder
}

func NewSynthesizer(client llm.Client, model string, prompts *prompt.Builder) *Synthesizer {
	return &Synthesizer{client: client, model: model, prompts: prompts}
}

// Synthesize returns the model's decision for text given the message's own snapshot.
// Output that is not an instruction comes back as instruction.Malformed, not as an error.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, snap invoicing.Snapshot) (instruction.Decision, error) {
	system, err := s.prompts.Synthesis(snap)
	if err != nil {
		return nil, err
	}

	content, err := llm.Complete(ctx, s.client, s.model, system, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize instruction: %w", err)
	}

	d := instruction.Parse(content)
	if m, ok := d.(instruction.Malformed); ok {
		logger.L.Error("Failed to decode JSON from LLM response", "error", m.Err, "content", m.Raw)
	}
	return d, nil
}
