package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (b *Bot) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start": b.handleStartCommand,
		"end":   b.handleEndCommand,
		"help":  b.handleHelpCommand,
	}
}

// handleStartCommand begins a fresh conversation, discarding any previous
// one for this chat.
func (b *Bot) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	conv, err := b.chat.StartChat(ctx)
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).Msg("start conversation")
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.ErrorGeneric))
	}

	if prev, ok := b.bind(chatID, conv.ID); ok {
		prev.stop()
		if err := b.chat.EndChat(ctx, prev.sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, b.log).Warn().Err(err).Str("previous", prev.sessionID).Msg("end previous conversation")
		}
	}
	logging.With(logging.WithSessID(ctx, conv.ID), b.log).Info().Msg("telegram conversation started")

	if err := b.SendMessage(ctx, chatID, conv.Messages[0].Text); err != nil {
		return err
	}
	return b.SendMessage(ctx, chatID, b.tr.T(i18n.Disclaimer))
}

// handleEndCommand discards the conversation bound to this chat.
func (b *Bot) handleEndCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	sessionID, ok := b.session(chatID)
	if !ok {
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.NoSession))
	}
	b.unbind(chatID, sessionID)
	if err := b.chat.EndChat(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logging.With(logging.WithSessID(ctx, sessionID), b.log).Error().Err(err).Msg("end conversation")
		return b.SendMessage(ctx, chatID, b.tr.T(i18n.ErrorGeneric))
	}
	return b.SendMessage(ctx, chatID, b.tr.T(i18n.SessionEnded))
}

func (b *Bot) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return b.SendMessage(ctx, message.Chat.ID, b.tr.T(i18n.BotHelp))
}
