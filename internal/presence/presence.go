package presence

import (
	"log/slog"
	"sync"

	"perepiska/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type eventChannel interface {
	On(event string, fn func(payload msgpack.RawMessage)) func()
}

// Tracker holds the process-wide set of online peer identities. Each server
// snapshot replaces the set wholesale; the client never diffs and models no
// TTL, staleness is the server's problem.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]bool)}
}

// Bind subscribes the tracker to presence snapshots and returns the
// release func.
func (t *Tracker) Bind(channel eventChannel) func() {
	return channel.On(models.EventOnlineUsers, func(payload msgpack.RawMessage) {
		var ev models.OnlineUsersEvent
		if err := msgpack.Unmarshal(payload, &ev); err != nil {
			slog.Error("malformed presence snapshot", "error", err)
			return
		}
		t.SetOnline(ev.UserIDs)
	})
}

// SetOnline replaces the online set with the given snapshot.
func (t *Tracker) SetOnline(ids []string) {
	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}

	t.mu.Lock()
	t.online = online
	t.mu.Unlock()
}

// Online reports whether id is in the last snapshot.
func (t *Tracker) Online(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[id]
}
