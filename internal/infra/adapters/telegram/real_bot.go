package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"mindfulbot/internal/config"
	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/ports/adapter"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/logging"
	"mindfulbot/internal/infra/metrics"
	"mindfulbot/internal/infra/worker"
	"mindfulbot/internal/usecase"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// chatBinding ties a Telegram chat to its current conversation.
type chatBinding struct {
	sessionID string
	stop      func()
}

// Bot relays Telegram chats into the chat use case. Every chat owns at most
// one conversation; replies arrive through the event hub.
type Bot struct {
	api    botAPI
	chat   usecase.ChatUseCase
	events adapter.EventSubscriber
	tr     *i18n.Translator
	pool   *worker.Pool
	log    *zerolog.Logger

	mu       sync.Mutex
	bindings map[int64]chatBinding
	fwd      sync.WaitGroup

	cancelPolling context.CancelFunc
}

// NewBot connects to the Bot API with the configured token.
func NewBot(cfg *config.BotConfig, chat usecase.ChatUseCase, events adapter.EventSubscriber, tr *i18n.Translator, logger *zerolog.Logger) (*Bot, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug
	return newBot(api, cfg.Workers, chat, events, tr, logger), nil
}

func newBot(api botAPI, workers int, chat usecase.ChatUseCase, events adapter.EventSubscriber, tr *i18n.Translator, logger *zerolog.Logger) *Bot {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &Bot{
		api:      api,
		chat:     chat,
		events:   events,
		tr:       tr,
		pool:     worker.NewPool(workers, &l),
		log:      &l,
		bindings: map[int64]chatBinding{},
	}
}

// StartPolling blocks, dispatching updates to the worker pool, until ctx is
// cancelled or StopPolling is called.
func (b *Bot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelPolling = cancel
	b.mu.Unlock()
	defer cancel()

	b.pool.Start(ctx)
	b.log.Info().Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.pool.Stop()
			b.releaseAll()
			b.log.Info().Msg("telegram polling stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			if err := b.pool.SubmitWait(ctx, func(ctx context.Context) error {
				return b.handleUpdate(ctx, up)
			}); err != nil && ctx.Err() == nil {
				b.log.Warn().Err(err).Msg("dropping update")
			}
		}
	}
}

func (b *Bot) StopPolling() {
	b.mu.Lock()
	cancel := b.cancelPolling
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithChatID(ctx, msg.Chat.ID)

	if msg.IsCommand() {
		metrics.IncTelegramUpdate("/" + msg.Command())
		if h, ok := b.commandRoutes()[msg.Command()]; ok {
			return h(ctx, msg)
		}
		return b.SendMessage(ctx, msg.Chat.ID, b.tr.T(i18n.BotHelp))
	}
	metrics.IncTelegramUpdate("")
	return b.handleText(ctx, msg)
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	sessionID, ok := b.session(chatID)
	if !ok {
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.NoSession))
	}

	_, err := b.chat.Submit(ctx, sessionID, msg.Text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		// swept while idle
		b.unbind(chatID, sessionID)
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.NoSession))
	case errors.Is(err, domain.ErrReplyPending), errors.Is(err, domain.ErrBusy):
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.ReplyPending))
	case errors.Is(err, domain.ErrRateLimited):
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.RateLimited))
	default:
		logging.With(ctx, b.log).Error().Err(err).Msg("submit message")
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.ErrorGeneric))
	}
}

// SendMessage sends plain text to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.IncTelegramSendError()
		return err
	}
	return nil
}

func (b *Bot) sendTyping(chatID int64) error {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		metrics.IncTelegramSendError()
		return err
	}
	return nil
}

func (b *Bot) session(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bind, ok := b.bindings[chatID]
	return bind.sessionID, ok
}

// bind attaches a conversation to chatID and returns the binding it replaced.
func (b *Bot) bind(chatID int64, sessionID string) (chatBinding, bool) {
	events, cancel := b.events.Subscribe(sessionID)
	b.fwd.Add(1)
	go b.forward(chatID, sessionID, events)

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.bindings[chatID]
	b.bindings[chatID] = chatBinding{sessionID: sessionID, stop: cancel}
	return prev, ok
}

// unbind drops the binding when it still points at sessionID.
func (b *Bot) unbind(chatID int64, sessionID string) {
	b.mu.Lock()
	bind, ok := b.bindings[chatID]
	if ok && bind.sessionID == sessionID {
		delete(b.bindings, chatID)
	}
	b.mu.Unlock()
	if ok && bind.sessionID == sessionID {
		bind.stop()
	}
}

func (b *Bot) releaseAll() {
	b.mu.Lock()
	all := b.bindings
	b.bindings = map[int64]chatBinding{}
	b.mu.Unlock()
	for _, bind := range all {
		bind.stop()
	}
	b.fwd.Wait()
}
