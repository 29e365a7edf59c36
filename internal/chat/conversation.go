package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"perepiska/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

// apiClient is the durable request/response surface the conversation needs.
type apiClient interface {
	ResolveConversation(ctx context.Context, peerID string) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, conversationID, text string) (models.Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
}

// eventChannel is the realtime surface: fire-and-forget notifications out,
// subscribed events in, with paired registration/release.
type eventChannel interface {
	On(event string, fn func(payload msgpack.RawMessage)) func()
	Emit(event string, payload any) error
}

// Conversation is the session object for one open one-to-one view. It owns
// the Store, the typing state for the single peer, and the event-stream
// subscriptions scoped to this view. Constructed by Open, destroyed by Close;
// Close releases every subscription before returning, so a new conversation's
// listeners are only ever installed after the old ones are gone.
type Conversation struct {
	id   string
	self models.Identity
	peer models.Identity

	api     apiClient
	channel eventChannel
	store   *Store
	typing  *TypingController

	// OnUpdate, when set, is invoked after every state change so the view
	// can re-render. Set it before any event can arrive, i.e. in Options.
	onUpdate func()

	mu         sync.RWMutex
	peerTyping bool

	offs      []func()
	closeOnce sync.Once
}

// Options tunes an Open call. OnUpdate may be nil.
type Options struct {
	OnUpdate func()
}

// Open resolves the conversation with peer, loads its history into render
// order, emits the batch read receipt for the peer's unread messages and
// subscribes to the event stream. The receipt is best-effort: a dead channel
// never blocks opening the view.
func Open(ctx context.Context, api apiClient, channel eventChannel, self, peer models.Identity, opts Options) (*Conversation, error) {
	id, err := api.ResolveConversation(ctx, peer.ID)
	if err != nil {
		return nil, err
	}

	history, err := api.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening conversation %s: %w", id, err)
	}

	c := &Conversation{
		id:       id,
		self:     self,
		peer:     peer,
		api:      api,
		channel:  channel,
		store:    NewStore(),
		onUpdate: opts.OnUpdate,
	}
	c.typing = NewTypingController(channel, peer.ID)
	c.store.Load(history)

	var unread []string
	for _, m := range history {
		if m.Sender.ID == peer.ID && m.Status != models.StatusRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		if err := channel.Emit(models.EventRead, models.ReadPayload{MessageIDs: unread, ConversationID: id}); err != nil {
			slog.Warn("read receipt notify failed", "conversation_id", id, "error", err)
		}
	}

	c.offs = []func(){
		channel.On(models.EventNewMessage, c.onNewMessage),
		channel.On(models.EventDeleted, c.onDeleted),
		channel.On(models.EventReadReceipt, c.onReadReceipt),
		channel.On(models.EventTypingStart, c.onTyping(true)),
		channel.On(models.EventTypingStop, c.onTyping(false)),
	}

	return c, nil
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) Peer() models.Identity { return c.peer }

// Messages returns the current render-ordered snapshot.
func (c *Conversation) Messages() []models.Message {
	return c.store.Messages()
}

// PeerTyping reports whether the viewed peer is currently typing.
func (c *Conversation) PeerTyping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerTyping
}

// Send persists the message first and only then shows and announces it: the
// durable call must return the canonical record before the realtime notify,
// so the peer never learns an id the sender's own store does not hold.
func (c *Conversation) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, nil
	}

	msg, err := c.api.CreateMessage(ctx, c.id, text)
	if err != nil {
		return models.Message{}, err
	}

	c.store.Insert(msg)
	c.notify()

	if err := c.channel.Emit(models.EventSend, models.SendPayload{Message: msg, To: c.peer.ID}); err != nil {
		slog.Warn("send notify failed", "conversation_id", c.id, "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// Delete removes a message the user authored: optimistically from the local
// store, then via realtime notify to the peer, then durably. A failed durable
// delete is logged and tolerated; the message is not resurrected. Callers
// only offer deletion on the user's own messages.
func (c *Conversation) Delete(ctx context.Context, messageID string) {
	c.store.Remove(messageID)
	c.notify()

	if err := c.channel.Emit(models.EventDelete, models.DeletePayload{
		MessageID:      messageID,
		ConversationID: c.id,
		To:             c.peer.ID,
	}); err != nil {
		slog.Warn("delete notify failed", "conversation_id", c.id, "message_id", messageID, "error", err)
	}

	if err := c.api.DeleteMessage(ctx, c.id, messageID); err != nil {
		slog.Error("durable delete failed", "conversation_id", c.id, "message_id", messageID, "error", err)
	}
}

// SetDraft feeds the local input text to the typing controller, emitting
// typing:start/stop on empty/non-empty transitions.
func (c *Conversation) SetDraft(text string) {
	c.typing.Update(text)
}

// Close releases all event-stream subscriptions scoped to this view.
// Idempotent; after it returns no stale handler can fire.
func (c *Conversation) Close() {
	c.closeOnce.Do(func() {
		for _, off := range c.offs {
			off()
		}
		c.offs = nil
	})
}

func (c *Conversation) onNewMessage(payload msgpack.RawMessage) {
	var msg models.Message
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		slog.Error("malformed message:new payload", "error", err)
		return
	}

	// Events for other conversations are the Inbox Aggregator's business.
	if msg.ConversationID != c.id {
		return
	}

	c.store.Insert(msg)

	if msg.Sender.ID == c.peer.ID {
		// A delivered message supersedes any typing indicator.
		c.setPeerTyping(false)

		// The view is open, so the message is observed the moment it lands.
		if err := c.channel.Emit(models.EventRead, models.ReadPayload{
			MessageIDs:     []string{msg.ID},
			ConversationID: c.id,
		}); err != nil {
			slog.Warn("read receipt notify failed", "conversation_id", c.id, "message_id", msg.ID, "error", err)
		}
	}

	c.notify()
}

func (c *Conversation) onDeleted(payload msgpack.RawMessage) {
	var ev models.DeletedEvent
	if err := msgpack.Unmarshal(payload, &ev); err != nil {
		slog.Error("malformed message:deleted payload", "error", err)
		return
	}

	c.store.Remove(ev.MessageID)
	c.notify()
}

func (c *Conversation) onReadReceipt(payload msgpack.RawMessage) {
	var ev models.ReadReceiptEvent
	if err := msgpack.Unmarshal(payload, &ev); err != nil {
		slog.Error("malformed read receipt payload", "error", err)
		return
	}

	c.store.MarkRead(ev.MessageIDs)
	c.notify()
}

func (c *Conversation) onTyping(typing bool) func(msgpack.RawMessage) {
	return func(payload msgpack.RawMessage) {
		var ev models.TypingEvent
		if err := msgpack.Unmarshal(payload, &ev); err != nil {
			slog.Error("malformed typing payload", "error", err)
			return
		}

		// Only the viewed peer drives this conversation's flag.
		if ev.From != c.peer.ID {
			return
		}

		c.setPeerTyping(typing)
		c.notify()
	}
}

func (c *Conversation) setPeerTyping(typing bool) {
	c.mu.Lock()
	c.peerTyping = typing
	c.mu.Unlock()
}

func (c *Conversation) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
