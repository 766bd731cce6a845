package adapter

import "mindfulbot/internal/domain/model"

// EventPublisher notifies observers (websocket clients, bot front-ends) about
// conversation changes. Publish must not block the caller.
type EventPublisher interface {
	Publish(ev model.Event)
}

// EventSubscriber lets a front-end follow one conversation. The returned
// cancel func releases the subscription and closes the channel.
type EventSubscriber interface {
	Subscribe(sessionID string) (<-chan model.Event, func())
}
