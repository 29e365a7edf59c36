package chat

import (
	"sort"
	"testing"
	"time"

	"perepiska/internal/models"
)

func msg(id string, at time.Time) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: "c1",
		Sender:         models.Identity{ID: "peer", Username: "peer"},
		Text:           "text " + id,
		CreatedAt:      at,
		Status:         models.StatusSent,
	}
}

func ids(list []models.Message) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

func TestStore_LoadReversesChronology(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	history := []models.Message{
		msg("m1", base),
		msg("m2", base.Add(time.Minute)),
		msg("m3", base.Add(2*time.Minute)),
	}

	s := NewStore()
	s.Load(history)

	got := ids(s.Messages())
	want := []string{"m3", "m2", "m1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestStore_InsertDedup(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	if !s.Insert(msg("m1", base)) {
		t.Error("first insert should report added")
	}
	if s.Insert(msg("m1", base)) {
		t.Error("duplicate insert should be a no-op")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 message, got %d", s.Len())
	}
}

func TestStore_OrderingInvariant(t *testing.T) {
	// History load followed by live events arriving out of order: array
	// order must equal CreatedAt-descending order throughout.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.Load([]models.Message{
		msg("h1", base),
		msg("h2", base.Add(time.Minute)),
	})

	s.Insert(msg("live3", base.Add(3*time.Minute)))
	s.Insert(msg("late", base.Add(30*time.Second))) // older than h2, newer than h1
	s.Insert(msg("live4", base.Add(4*time.Minute)))

	got := s.Messages()
	sorted := make([]models.Message, len(got))
	copy(sorted, got)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	for i := range got {
		if got[i].ID != sorted[i].ID {
			t.Fatalf("index %d: array order %v != sorted order %v", i, ids(got), ids(sorted))
		}
	}
}

func TestStore_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	s.Insert(msg("first", base))
	s.Insert(msg("second", base))

	got := ids(s.Messages())
	if got[0] != "second" || got[1] != "first" {
		t.Errorf("expected later arrival in front among equals, got %v", got)
	}
}

func TestStore_MarkReadIdempotent(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.Insert(msg("m1", base))
	s.Insert(msg("m2", base.Add(time.Minute)))

	s.MarkRead([]string{"m1", "ghost"})
	s.MarkRead([]string{"m1", "ghost"})

	msgs := s.Messages()
	for _, m := range msgs {
		switch m.ID {
		case "m1":
			if m.Status != models.StatusRead {
				t.Errorf("m1 should be read, got %s", m.Status)
			}
		case "m2":
			if m.Status != models.StatusSent {
				t.Errorf("m2 should be untouched, got %s", m.Status)
			}
		}
	}
}

func TestStore_StatusNeverRegresses(t *testing.T) {
	if got := models.StatusRead.Advance(models.StatusSent); got != models.StatusRead {
		t.Errorf("read must not regress to sent, got %s", got)
	}
	if got := models.StatusSent.Advance(models.StatusDelivered); got != models.StatusDelivered {
		t.Errorf("sent should advance to delivered, got %s", got)
	}
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.Insert(msg("m1", base))

	s.Remove("ghost")
	if s.Len() != 1 {
		t.Errorf("removing an absent id should leave the store unchanged, got %d messages", s.Len())
	}

	s.Remove("m1")
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d messages", s.Len())
	}
}
