package model

type EventKind string

const (
	EventMessage EventKind = "message"
	EventTyping  EventKind = "typing"
)

// Event is published to observers whenever a conversation changes.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Message   *Message  `json:"message,omitempty"`
	Typing    bool      `json:"typing"`
}

func MessageEvent(sessionID string, m Message) Event {
	return Event{Kind: EventMessage, SessionID: sessionID, Message: &m}
}

func TypingEvent(sessionID string, typing bool) Event {
	return Event{Kind: EventTyping, SessionID: sessionID, Typing: typing}
}
