package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/comigor/invoicebot-go/internal/pipeline"
)

type fakeAPI struct {
	updates chan tgbotapi.Update
	stopped chan struct{}

	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	cfg  tgbotapi.UpdateConfig
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16), stopped: make(chan struct{})}
}

func (f *fakeAPI) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.cfg = cfg
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() { close(f.stopped) }

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeProcessor struct {
	mu       sync.Mutex
	received []pipeline.Message
	err      error

	// started and release, when set, hold Process until the test lets it go
	started chan struct{}
	release chan struct{}
}

func (f *fakeProcessor) Process(ctx context.Context, msg pipeline.Message) (pipeline.Reply, error) {
	f.mu.Lock()
	f.received = append(f.received, msg)
	f.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return pipeline.Reply{}, errors.New("expected a per-message deadline")
	}
	if f.started != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return pipeline.Reply{}, ctx.Err()
		}
	}
	if f.err != nil {
		return pipeline.Reply{Outcome: pipeline.OutcomeFailed}, f.err
	}
	return pipeline.Reply{Text: "echo: " + msg.Text, Outcome: pipeline.OutcomeSummarized}, nil
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

func commandUpdate(chatID int64, text string, cmdLen int) tgbotapi.Update {
	u := textUpdate(chatID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return u
}

func TestBot_RepliesToTextAndStart(t *testing.T) {
	api := newFakeAPI()
	proc := &fakeProcessor{}
	bot := New(api, proc, config.TelegramConfig{PollTimeout: 30}, time.Minute)

	api.updates <- textUpdate(10, "create customer ACME")
	api.updates <- commandUpdate(11, "/start", 6)
	api.updates <- commandUpdate(12, "/help", 5)
	api.updates <- tgbotapi.Update{}
	api.updates <- textUpdate(13, "")
	close(api.updates)

	require.NoError(t, bot.Run(context.Background()))
	require.Equal(t, 30, api.cfg.Timeout)

	sent := map[int64]string{}
	for _, m := range api.messages() {
		sent[m.ChatID] = m.Text
	}
	require.Equal(t, map[int64]string{
		10: "echo: create customer ACME",
		11: "echo: /start",
	}, sent)
	require.Len(t, proc.received, 2)
}

func TestBot_FaultSendsNothing(t *testing.T) {
	api := newFakeAPI()
	proc := &fakeProcessor{err: errors.New("invoicing API unreachable")}
	bot := New(api, proc, config.TelegramConfig{}, time.Minute)

	api.updates <- textUpdate(10, "hi")
	close(api.updates)

	require.NoError(t, bot.Run(context.Background()))
	require.Len(t, proc.received, 1)
	require.Empty(t, api.messages())
}

func TestBot_StopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, &fakeProcessor{}, config.TelegramConfig{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
	<-api.stopped
}

func TestBot_FinishesInFlightMessageOnCancel(t *testing.T) {
	api := newFakeAPI()
	proc := &fakeProcessor{started: make(chan struct{}), release: make(chan struct{})}
	bot := New(api, proc, config.TelegramConfig{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	api.updates <- textUpdate(10, "create invoice for customer 7")
	<-proc.started
	cancel()
	<-api.stopped

	select {
	case <-done:
		t.Fatal("Run returned before the in-flight message finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(proc.release)
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}

	sent := api.messages()
	require.Len(t, sent, 1)
	require.Equal(t, int64(10), sent[0].ChatID)
	require.Equal(t, "echo: create invoice for customer 7", sent[0].Text)
}
