package inbox

import (
	"context"
	"log/slog"
	"sync"

	"perepiska/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type eventChannel interface {
	On(event string, fn func(payload msgpack.RawMessage)) func()
}

// Loader fetches the full peer list with last-message previews.
type Loader func(ctx context.Context) ([]models.Peer, error)

// Aggregator maintains the conversation-peer list shown outside the open
// view. It watches the same message:new stream as the Message Store but with
// no conversation filter: every inbound message refreshes its sender's
// preview. A message from a sender the list does not know triggers a full
// resync instead of a fabricated partial entry.
type Aggregator struct {
	loader Loader

	mu        sync.RWMutex
	peers     []models.Peer
	resyncing bool
}

func NewAggregator(loader Loader) *Aggregator {
	return &Aggregator{loader: loader}
}

// Load fetches the peer list, replacing whatever is held.
func (a *Aggregator) Load(ctx context.Context) error {
	peers, err := a.loader(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.peers = peers
	a.mu.Unlock()
	return nil
}

// Bind subscribes the aggregator to the system-wide new-message stream and
// returns the release func. ctx bounds the resync calls the subscription may
// trigger.
func (a *Aggregator) Bind(ctx context.Context, channel eventChannel) func() {
	return channel.On(models.EventNewMessage, func(payload msgpack.RawMessage) {
		var msg models.Message
		if err := msgpack.Unmarshal(payload, &msg); err != nil {
			slog.Error("malformed message:new payload", "error", err)
			return
		}
		a.Apply(ctx, msg)
	})
}

// Apply folds one inbound message into the list: a known sender's entry gets
// the new preview and moves to the front; an unknown sender means the list is
// stale, so the whole thing is re-fetched off the event path.
func (a *Aggregator) Apply(ctx context.Context, msg models.Message) {
	a.mu.Lock()

	for i := range a.peers {
		if a.peers[i].ID != msg.Sender.ID {
			continue
		}

		entry := a.peers[i]
		entry.LastMessage = &models.LastMessage{Text: msg.Text, CreatedAt: msg.CreatedAt}
		a.peers = append(a.peers[:i], a.peers[i+1:]...)
		a.peers = append([]models.Peer{entry}, a.peers...)
		a.mu.Unlock()
		return
	}

	// Unknown sender. Resync once; messages arriving meanwhile still apply
	// to the current list and the fetch result replaces it wholesale.
	if a.resyncing {
		a.mu.Unlock()
		return
	}
	a.resyncing = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.resyncing = false
			a.mu.Unlock()
		}()

		if err := a.Load(ctx); err != nil {
			slog.Error("inbox resync failed", "sender_id", msg.Sender.ID, "error", err)
		}
	}()
}

// Peers returns a snapshot ordered by preview recency, entries without a
// preview trailing in fetched order.
func (a *Aggregator) Peers() []models.Peer {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Peer, len(a.peers))
	copy(out, a.peers)
	return out
}
