package model

import (
	"time"
)

// Conversation is the aggregate root for one chat session. Messages are
// append-only: insertion order is display order is chronological order.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Typing    bool      `json:"typing"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation starts a conversation seeded with a single bot greeting.
func NewConversation(id, greeting string, now time.Time) *Conversation {
	c := &Conversation{
		ID:        id,
		Messages:  make([]Message, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Append(NewMessage(SenderBot, greeting, now))
	return c
}

func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
	if m.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = m.Timestamp
	}
}

// SetTyping flips the composing flag.
func (c *Conversation) SetTyping(typing bool, now time.Time) {
	c.Typing = typing
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

func (c *Conversation) Len() int { return len(c.Messages) }

// Last returns the most recent message. A conversation always holds at least
// the seed greeting.
func (c *Conversation) Last() Message {
	return c.Messages[len(c.Messages)-1]
}

// Clone returns a deep copy so callers never alias the stored timeline.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

func (c *Conversation) IdleSince(before time.Time) bool {
	return c.UpdatedAt.Before(before)
}
