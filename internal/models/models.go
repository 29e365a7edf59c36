package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDisconnected = errors.New("channel disconnected")
)

// Identity is a user as issued by the auth collaborator.
type Identity struct {
	ID       string `json:"_id" msgpack:"_id"`
	Username string `json:"username" msgpack:"username"`
}

// Conversation is the durable pairing record between two identities.
// The server owns it; the client only caches the resolved id for the session.
type Conversation struct {
	ID             string   `json:"_id"`
	ParticipantIDs []string `json:"participants"`
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Advance returns the later of the two statuses. Transitions are monotonic:
// a message never regresses, and re-applying the current status is a no-op.
func (s MessageStatus) Advance(to MessageStatus) MessageStatus {
	if statusRank[to] > statusRank[s] {
		return to
	}
	return s
}

// Message is a chat message. ID is assigned by the server at creation;
// the client never fabricates a permanent id.
type Message struct {
	ID             string        `json:"_id" msgpack:"_id"`
	ConversationID string        `json:"conversationId" msgpack:"conversationId"`
	Sender         Identity      `json:"sender" msgpack:"sender"`
	Text           string        `json:"text" msgpack:"text"`
	CreatedAt      time.Time     `json:"createdAt" msgpack:"createdAt"`
	Status         MessageStatus `json:"status" msgpack:"status"`
}

// LastMessage is the inbox preview of the most recent message with a peer.
type LastMessage struct {
	Text      string    `json:"text" msgpack:"text"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}

// Peer is an inbox entry: a known identity plus an optional preview.
type Peer struct {
	Identity
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
}

// Credentials is the session credential issued by the auth collaborator.
// The token is opaque to this core and attached to every API call.
type Credentials struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}
