package chat

import (
	"log/slog"
	"sync"

	"perepiska/internal/models"
)

// typingEmitter is the outbound slice of the event channel the controller
// needs.
type typingEmitter interface {
	Emit(event string, payload any) error
}

// TypingController turns local draft changes into typing intent for the peer.
// Exactly one typing:start is emitted when the draft crosses from empty to
// non-empty and one typing:stop when it crosses back; keystrokes that stay on
// the same side of the boundary emit nothing.
type TypingController struct {
	channel typingEmitter
	peerID  string

	mu     sync.Mutex
	active bool
}

func NewTypingController(channel typingEmitter, peerID string) *TypingController {
	return &TypingController{channel: channel, peerID: peerID}
}

func (t *TypingController) Update(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonEmpty := len(text) > 0
	if nonEmpty == t.active {
		return
	}
	t.active = nonEmpty

	event := models.EventTypingStop
	if nonEmpty {
		event = models.EventTypingStart
	}
	if err := t.channel.Emit(event, models.TypingPayload{To: t.peerID}); err != nil {
		slog.Warn("typing notify failed", "peer_id", t.peerID, "error", err)
	}
}
