package models

// Event names on the realtime channel. Outbound events are emitted by this
// client, inbound events arrive from the server fan-out. typing:start and
// typing:stop are symmetric: outbound they carry the recipient, inbound the
// sender.
const (
	EventRegister    = "addUser"
	EventSend        = "message:send"
	EventDelete      = "message:delete"
	EventRead        = "message:read"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventNewMessage  = "message:new"
	EventDeleted     = "message:deleted"
	EventReadReceipt = "message:read:receipt"
	EventOnlineUsers = "getOnlineUsers"
)

// RegisterPayload announces the signed-in identity after every (re)connect.
type RegisterPayload struct {
	UserID string `msgpack:"userId"`
}

// SendPayload notifies the peer of a message already accepted by the server.
// The embedded message is the canonical one, server id and timestamp included.
type SendPayload struct {
	Message
	To string `msgpack:"to"`
}

// DeletePayload notifies the peer that the author removed a message.
type DeletePayload struct {
	MessageID      string `msgpack:"messageId"`
	ConversationID string `msgpack:"conversationId"`
	To             string `msgpack:"to"`
}

// ReadPayload is the outbound read receipt for one or more messages.
type ReadPayload struct {
	MessageIDs     []string `msgpack:"messageIds"`
	ConversationID string   `msgpack:"conversationId"`
}

// TypingPayload is the outbound typing signal addressed to the peer.
type TypingPayload struct {
	To string `msgpack:"to"`
}

// TypingEvent is the inbound typing signal carrying the sender.
type TypingEvent struct {
	From string `msgpack:"from"`
}

// DeletedEvent is the inbound notification that a message was removed.
type DeletedEvent struct {
	MessageID string `msgpack:"messageId"`
}

// ReadReceiptEvent is the inbound notification that messages were observed.
type ReadReceiptEvent struct {
	MessageIDs []string `msgpack:"messageIds"`
}

// OnlineUsersEvent is the wholesale presence snapshot.
type OnlineUsersEvent struct {
	UserIDs []string `msgpack:"userIds"`
}
