package telegram

import (
	"context"

	"mindfulbot/internal/domain/model"
)

// forward mirrors conversation events into the chat until the subscription
// is cancelled. User messages are skipped since Telegram already shows them.
func (b *Bot) forward(chatID int64, sessionID string, events <-chan model.Event) {
	defer b.fwd.Done()
	log := b.log.With().Int64("chat_id", chatID).Str("session_id", sessionID).Logger()

	for ev := range events {
		switch ev.Kind {
		case model.EventTyping:
			if !ev.Typing {
				continue
			}
			if err := b.sendTyping(chatID); err != nil {
				log.Warn().Err(err).Msg("send typing action")
			}
		case model.EventMessage:
			if ev.Message == nil || ev.Message.Sender != model.SenderBot {
				continue
			}
			if err := b.SendMessage(context.Background(), chatID, ev.Message.Text); err != nil {
				log.Error().Err(err).Msg("forward bot reply")
			}
		}
	}
}
