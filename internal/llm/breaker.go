package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/comigor/invoicebot-go/internal/logger"
)

// BreakerClient fails fast while the upstream LLM keeps erroring.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps next with a circuit breaker tuned by cfg.
func NewBreakerClient(next Client, cfg config.BreakerConfig) *BreakerClient {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a cancelled message is not the upstream's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerClient{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// CreateChatCompletion forwards to the wrapped client unless the breaker is open.
func (b *BreakerClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return out.(openai.ChatCompletionResponse), nil
}

// State reports the breaker state, e.g. for health checks.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}
