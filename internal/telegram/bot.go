// Package telegram feeds Telegram messages into the pipeline over long polling.
package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/comigor/invoicebot-go/internal/logger"
	"github.com/comigor/invoicebot-go/internal/pipeline"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Processor handles one message; *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, msg pipeline.Message) (pipeline.Reply, error)
}

// Bot dispatches every update to its own goroutine.
type Bot struct {
	api            API
	proc           Processor
	pollTimeout    int
	messageTimeout time.Duration
	wg             sync.WaitGroup
}

// Dial logs in with the configured token.
func Dial(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug
	logger.L.Info("authorized on telegram", "account", api.Self.UserName)
	return api, nil
}

func New(api API, proc Processor, cfg config.TelegramConfig, messageTimeout time.Duration) *Bot {
	return &Bot{
		api:            api,
		proc:           proc,
		pollTimeout:    cfg.PollTimeout,
		messageTimeout: messageTimeout,
	}
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight messages to finish. Cancelling ctx stops polling only; messages
// already accepted run to completion under their own timeout.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !accepts(update) {
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handle(ctx, update.Message)
			}()
		}
	}
}

// accepts keeps /start and plain text; other commands are ignored.
func accepts(update tgbotapi.Update) bool {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return false
	}
	if msg.IsCommand() {
		return msg.Command() == "start"
	}
	return true
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	// an API call may already have created the invoice; the user still gets told
	ctx = context.WithoutCancel(ctx)
	if b.messageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.messageTimeout)
		defer cancel()
	}

	chatID := msg.Chat.ID
	reply, err := b.proc.Process(ctx, pipeline.Message{ChatID: strconv.FormatInt(chatID, 10), Text: msg.Text})
	if err != nil {
		logger.L.Error("failed to handle telegram message", "chat_id", chatID, "error", err)
		return
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, reply.Text)); err != nil {
		logger.L.Error("failed to send telegram reply", "chat_id", chatID, "exchange_id", reply.ExchangeID, "error", err)
	}
}
