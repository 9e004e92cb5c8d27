// Package pipeline handles one chat message end to end: it reads reference data,
// asks the LLM for an API call, executes it and asks the LLM to phrase the result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless" // FSM library

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/comigor/invoicebot-go/internal/history"
	"github.com/comigor/invoicebot-go/internal/instruction"
	"github.com/comigor/invoicebot-go/internal/llm"
	"github.com/comigor/invoicebot-go/internal/logger"
	"github.com/comigor/invoicebot-go/internal/prompt"
	"github.com/comigor/invoicebot-go/pkg/invoicing"
)

// FSM States
type State string

const (
	StateReceived          State = "Received"
	StateFetchingReference State = "FetchingReference"
	StateSynthesizing      State = "Synthesizing"
	StateExecuting         State = "Executing"
	StateSummarizing       State = "Summarizing"
	StateReplied           State = "Replied" // Terminal: a reply is ready
	StateFailed            State = "Failed"  // Terminal: transport fault, no reply
)

// FSM Triggers
type Trigger string

const (
	TriggerMessageReceived Trigger = "MessageReceived"
	TriggerSnapshotReady   Trigger = "SnapshotReady"
	TriggerCallReady       Trigger = "CallReady"
	TriggerResultReady     Trigger = "ResultReady"
	TriggerReplyReady      Trigger = "ReplyReady"
	TriggerEarlyReply      Trigger = "EarlyReply" // Malformed output, error signal or refused call
	TriggerFault           Trigger = "Fault"
)

// Outcome tells how a message ended.
type Outcome string

const (
	OutcomeSummarized Outcome = "summarized"
	OutcomeApology    Outcome = "apology"
	OutcomeSignal     Outcome = "signal"
	OutcomeRefused    Outcome = "refused"
	OutcomeFailed     Outcome = "failed"
)

// Invoicing is the part of the invoicing client the pipeline needs.
type Invoicing interface {
	FetchSnapshot(ctx context.Context) (invoicing.Snapshot, error)
	Execute(ctx context.Context, req invoicing.Request) (invoicing.Result, error)
}

// Recorder keeps an audit trail of handled messages.
type Recorder interface {
	Save(ctx context.Context, e history.Exchange)
}

// Message is one incoming chat message.
type Message struct {
	ChatID string
	Text   string
}

// Reply is what to send back, plus what happened on the way.
type Reply struct {
	ExchangeID string
	Text       string
	Outcome    Outcome
	Decision   instruction.Decision
	Result     *invoicing.Result
}

// Pipeline is safe for concurrent use; every call to Process owns its state.
type Pipeline struct {
	api         Invoicing
	synthesizer *Synthesizer
	summarizer  *Summarizer
	policy      *instruction.Policy
	recorder    Recorder
	metrics     *Metrics
	apology     string
	refusal     string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithRecorder stores every exchange in r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMetrics records outcomes and phase latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a new pipeline.
func New(api Invoicing, llmClient llm.Client, cfg config.Config, opts ...Option) *Pipeline {
	prompts := prompt.NewBuilder(cfg.LLM.SynthesisPrompt, cfg.LLM.SummaryPrompt)
	p := &Pipeline{
		api:         api,
		synthesizer: NewSynthesizer(llmClient, cfg.LLM.Model, prompts),
		summarizer:  NewSummarizer(llmClient, cfg.LLM.Model, prompts),
		policy:      instruction.NewPolicy(cfg.Invoicing.AllowedMethods, cfg.Invoicing.AllowedEndpoints),
		apology:     cfg.Pipeline.Apology,
		refusal:     cfg.Pipeline.Refusal,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one message. It is created by Process and never shared.
type run struct {
	msg      Message
	id       string
	snapshot invoicing.Snapshot
	decision instruction.Decision
	call     instruction.Call
	result   *invoicing.Result
	reply    string
	outcome  Outcome
	err      error
	next     Trigger
}

// Process handles msg and returns the reply to send.
// A non-nil error means a transport fault: nothing should be sent to the user.
func (p *Pipeline) Process(ctx context.Context, msg Message) (Reply, error) {
	r := &run{msg: msg, id: uuid.NewString()}
	log := logger.With("exchange_id", r.id, "chat_id", msg.ChatID)

	fsm := stateless.NewStateMachine(StateReceived)

	fsm.Configure(StateReceived).
		Permit(TriggerMessageReceived, StateFetchingReference)

	// State: FetchingReference
	// Action: read VAT rates, invoice series and customers into this run's snapshot.
	fsm.Configure(StateFetchingReference).
		OnEntry(func(ctx context.Context, _ ...any) error {
			defer p.metrics.observePhase(StateFetchingReference, time.Now())
			log.Debug("FSM: Entering StateFetchingReference")

			snap, err := p.api.FetchSnapshot(ctx)
			if err != nil {
				r.fail(fmt.Errorf("fetch reference data: %w", err))
				return nil
			}
			r.snapshot = snap
			r.next = TriggerSnapshotReady
			return nil
		}).
		Permit(TriggerSnapshotReady, StateSynthesizing).
		Permit(TriggerFault, StateFailed)

	// State: Synthesizing
	// Action: ask the LLM for a decision and vet it.
	// Transitions:
	//   - Call allowed by the policy -> StateExecuting
	//   - Malformed, Signal or refused Call -> StateReplied
	fsm.Configure(StateSynthesizing).
		OnEntry(func(ctx context.Context, _ ...any) error {
			defer p.metrics.observePhase(StateSynthesizing, time.Now())
			log.Debug("FSM: Entering StateSynthesizing")

			d, err := p.synthesizer.Synthesize(ctx, r.msg.Text, r.snapshot)
			if err != nil {
				r.fail(err)
				return nil
			}
			r.decision = d

			switch d := d.(type) {
			case instruction.Malformed:
				r.earlyReply(p.apology, OutcomeApology)
			case instruction.Signal:
				log.Info("LLM declined to build a call", "message", d.Message)
				r.earlyReply(d.Message, OutcomeSignal)
			case instruction.Call:
				if err := p.policy.Check(d); err != nil {
					log.Warn("refusing call", "error", err, "method", d.Method, "endpoint", d.Endpoint)
					r.earlyReply(p.refusal, OutcomeRefused)
					return nil
				}
				r.call = d
				r.next = TriggerCallReady
			default:
				r.fail(fmt.Errorf("unknown decision %T", d))
			}
			return nil
		}).
		Permit(TriggerCallReady, StateExecuting).
		Permit(TriggerEarlyReply, StateReplied).
		Permit(TriggerFault, StateFailed)

	// State: Executing
	// Action: perform the call exactly once. Error statuses are results, not faults.
	fsm.Configure(StateExecuting).
		OnEntry(func(ctx context.Context, _ ...any) error {
			defer p.metrics.observePhase(StateExecuting, time.Now())
			log.Debug("FSM: Entering StateExecuting", "method", r.call.Method, "endpoint", r.call.Endpoint)

			res, err := p.api.Execute(ctx, invoicing.Request{
				Method:   r.call.Method,
				Endpoint: r.call.Endpoint,
				Data:     r.call.Data,
			})
			if err != nil {
				r.fail(fmt.Errorf("execute call: %w", err))
				return nil
			}
			if !res.OK() {
				log.Warn("invoicing API call failed", "status", res.Status, "method", r.call.Method, "endpoint", r.call.Endpoint)
			}
			r.result = &res
			r.next = TriggerResultReady
			return nil
		}).
		Permit(TriggerResultReady, StateSummarizing).
		Permit(TriggerFault, StateFailed)

	fsm.Configure(StateSummarizing).
		OnEntry(func(ctx context.Context, _ ...any) error {
			defer p.metrics.observePhase(StateSummarizing, time.Now())
			log.Debug("FSM: Entering StateSummarizing")

			text, err := p.summarizer.Summarize(ctx, r.msg.Text, *r.result)
			if err != nil {
				r.fail(err)
				return nil
			}
			r.reply = text
			r.outcome = OutcomeSummarized
			r.next = TriggerReplyReady
			return nil
		}).
		Permit(TriggerReplyReady, StateReplied).
		Permit(TriggerFault, StateFailed)

	fsm.Configure(StateReplied)
	fsm.Configure(StateFailed)

	// Each OnEntry leaves the next trigger in r.next; firing happens here, never from inside an action.
	for next := TriggerMessageReceived; next != ""; {
		r.next = ""
		if err := fsm.FireCtx(ctx, next); err != nil {
			logger.L.Error("FSM fire error", "error", err, "trigger", next)
			return Reply{}, fmt.Errorf("FSM internal error: %w", err)
		}
		next = r.next
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("FSM internal error: %w", err)
	}

	p.metrics.countMessage(r.outcome)
	p.record(ctx, r)

	switch state {
	case StateReplied:
		log.Info("message handled", "outcome", r.outcome)
		return Reply{ExchangeID: r.id, Text: r.reply, Outcome: r.outcome, Decision: r.decision, Result: r.result}, nil
	case StateFailed:
		log.Error("message failed", "error", r.err)
		return Reply{ExchangeID: r.id, Outcome: OutcomeFailed, Decision: r.decision, Result: r.result}, r.err
	default:
		return Reply{}, fmt.Errorf("FSM ended in an unexpected state: %v", state)
	}
}

func (r *run) fail(err error) {
	r.err = err
	r.outcome = OutcomeFailed
	r.next = TriggerFault
}

func (r *run) earlyReply(text string, outcome Outcome) {
	r.reply = text
	r.outcome = outcome
	r.next = TriggerEarlyReply
}

func (p *Pipeline) record(ctx context.Context, r *run) {
	if p.recorder == nil {
		return
	}
	e := history.Exchange{
		ID:        r.id,
		ChatID:    r.msg.ChatID,
		UserText:  r.msg.Text,
		Reply:     r.reply,
		Outcome:   string(r.outcome),
		CreatedAt: time.Now(),
	}
	if r.decision != nil {
		e.Decision = string(r.decision.Kind())
	}
	if c, ok := r.decision.(instruction.Call); ok {
		if b, err := json.Marshal(c); err == nil {
			e.Instruction = string(b)
		}
	}
	if r.result != nil {
		e.APIStatus = r.result.Status
	}
	if r.err != nil {
		e.Error = r.err.Error()
	}
	// the exchange is recorded even when the message's own context was cancelled
	p.recorder.Save(context.WithoutCancel(ctx), e)
}

// IsReferenceFailure reports whether err came from reading reference data.
func IsReferenceFailure(err error) bool {
	return errors.Is(err, invoicing.ErrReferenceUnavailable)
}
