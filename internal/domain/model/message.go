package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of a conversation timeline. It is a value type and is
// never modified once created.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a message with a fresh ULID. ULIDs created by ulid.Make
// are monotonic within the process, so id order follows creation order.
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{
		ID:        ulid.Make().String(),
		Text:      text,
		Sender:    sender,
		Timestamp: at,
	}
}
