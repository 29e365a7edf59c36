package chat

import (
	"sync"

	"perepiska/internal/models"
)

// Reducers over the render-ordered message list. They are pure slice-in,
// slice-out functions with no transport dependency: the distributed races
// between the history fetch and the live stream (duplicate delivery, unknown
// ids, out-of-order arrival) are absorbed here as no-ops.

// insert places msg so that CreatedAt-descending order matches array order.
// A message whose id is already present is a no-op: network retries may
// deliver the same event twice. Among equal timestamps the later arrival
// lands in front, which is all the tie-break the design guarantees.
func insert(list []models.Message, msg models.Message) []models.Message {
	for i := range list {
		if list[i].ID == msg.ID {
			return list
		}
	}

	i := 0
	for i < len(list) && list[i].CreatedAt.After(msg.CreatedAt) {
		i++
	}

	list = append(list, models.Message{})
	copy(list[i+1:], list[i:])
	list[i] = msg
	return list
}

// markRead advances every listed message to read. Ids not present locally
// (already scrolled out, already deleted) are skipped, and re-applying a
// receipt is a no-op.
func markRead(list []models.Message, ids []string) []models.Message {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	for i := range list {
		if wanted[list[i].ID] {
			list[i].Status = list[i].Status.Advance(models.StatusRead)
		}
	}
	return list
}

// remove deletes by id unconditionally; an absent id leaves the list as is.
func remove(list []models.Message, id string) []models.Message {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// Store is the in-memory ordered message collection for the open
// conversation: the single source of truth for what is rendered, most recent
// first. The mutex stands in for the original's single-threaded callback
// serialization, since local user actions run on their own goroutines.
type Store struct {
	mu   sync.RWMutex
	msgs []models.Message
}

func NewStore() *Store {
	return &Store{}
}

// Load replaces the store content with a history page served in
// chronological order.
func (s *Store) Load(history []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = nil
	for _, m := range history {
		s.msgs = insert(s.msgs, m)
	}
}

// Insert adds one message, keeping render order. Returns false if the id was
// already present.
func (s *Store) Insert(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.msgs)
	s.msgs = insert(s.msgs, msg)
	return len(s.msgs) != before
}

func (s *Store) MarkRead(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = markRead(s.msgs, ids)
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = remove(s.msgs, id)
}

// Messages returns a snapshot in render order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
