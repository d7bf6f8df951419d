package events

import (
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(8)

	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypeEntryProcessed, map[string]any{"name": "sample.json"})

	ev := <-ch
	if ev.Type != TypeEntryProcessed {
		t.Fatalf("expected type %q, got %q", TypeEntryProcessed, ev.Type)
	}
	if ev.ID != 1 {
		t.Fatalf("expected first event ID 1, got %d", ev.ID)
	}
}

func TestSnapshotSinceSkipsOldEvents(t *testing.T) {
	h := NewHub(8)

	h.Publish(TypeCycleStarted, nil)
	h.Publish(TypeCycleComplete, nil)
	h.Publish(TypeCycleIdle, nil)

	all := h.SnapshotSince(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(all))
	}

	tail := h.SnapshotSince(all[1].ID)
	if len(tail) != 1 || tail[0].Type != TypeCycleIdle {
		t.Fatalf("expected only the last event, got %+v", tail)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	h := NewHub(2)

	h.Publish(TypeCycleStarted, nil)
	h.Publish(TypeCycleComplete, nil)
	h.Publish(TypeCycleIdle, nil)

	buf := h.SnapshotSince(0)
	if len(buf) != 2 {
		t.Fatalf("expected ring capacity 2, got %d", len(buf))
	}
	if buf[0].Type != TypeCycleComplete {
		t.Fatalf("expected oldest surviving event to be cycle.complete, got %q", buf[0].Type)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub(4)

	// Never drained; channel buffer will fill and further publishes must not block.
	_, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < 300; i++ {
		h.Publish(TypeEntryStarted, nil)
	}
}
