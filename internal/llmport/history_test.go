package llmport

import (
	"testing"
	"time"
)

func TestHistoryRecordAndSnapshot(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()

	h.Record("hello", "hi there", now)
	h.Record("what time is it", "it's noon", now.Add(time.Second))

	snap := h.Snapshot(now.Add(2 * time.Second))
	if len(snap) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(snap))
	}
	if snap[0].User != "hello" || snap[1].Assistant != "it's noon" {
		t.Fatalf("unexpected snapshot contents: %+v", snap)
	}
}

func TestHistoryEnforcesMaxEntries(t *testing.T) {
	h := NewHistory(2, time.Hour)
	now := time.Now()

	h.Record("a", "1", now)
	h.Record("b", "2", now)
	h.Record("c", "3", now)

	snap := h.Snapshot(now)
	if len(snap) != 2 {
		t.Fatalf("expected truncation to 2 entries, got %d", len(snap))
	}
	if snap[0].User != "b" || snap[1].User != "c" {
		t.Fatalf("expected oldest entry dropped, got %+v", snap)
	}
}

func TestHistoryExpiresByTTL(t *testing.T) {
	h := NewHistory(10, 100*time.Millisecond)
	now := time.Now()

	h.Record("old", "reply", now)

	snap := h.Snapshot(now.Add(200 * time.Millisecond))
	if len(snap) != 0 {
		t.Fatalf("expected expired entry to be dropped, got %+v", snap)
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()
	h.Record("a", "b", now)
	h.Clear()

	if snap := h.Snapshot(now); len(snap) != 0 {
		t.Fatalf("expected empty history after Clear, got %+v", snap)
	}
}
