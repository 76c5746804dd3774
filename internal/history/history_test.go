package history

import (
	"testing"
	"time"
)

func TestHistory_MinMaxWithinWindow(t *testing.T) {
	h := NewHistory(time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Insert(base, 100, 1)
	h.Insert(base.Add(time.Minute), 105, 2)
	h.Insert(base.Add(2*time.Minute), 95, 3)

	min, max, ok := h.MinMax(time.Hour, base.Add(2*time.Minute))
	if !ok {
		t.Fatal("expected points in range")
	}
	if min != 95 || max != 105 {
		t.Fatalf("unexpected min/max: %v/%v", min, max)
	}
}

func TestHistory_PruneOldPointsOnInsert(t *testing.T) {
	h := NewHistory(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Insert(base, 100, 1)
	h.Insert(base.Add(30*time.Second), 101, 1)
	if h.Len() != 2 {
		t.Fatalf("expected 2 points, got %d", h.Len())
	}

	// this insert is 2 minutes after the first point, outside the 1-minute window
	h.Insert(base.Add(2*time.Minute), 102, 1)
	if h.Len() != 1 {
		t.Fatalf("expected stale points pruned, got %d points", h.Len())
	}
}

func TestHistory_AvgVolume(t *testing.T) {
	h := NewHistory(time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Insert(base, 100, 10)
	h.Insert(base.Add(time.Second), 100, 20)
	h.Insert(base.Add(2*time.Second), 100, 30)

	avg := h.AvgVolume(time.Hour, base.Add(2*time.Second))
	if avg != 20 {
		t.Fatalf("expected avg volume 20, got %v", avg)
	}
}

func TestHistory_SliceOrderedOldestFirst(t *testing.T) {
	h := NewHistory(time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Insert(base, 1, 1)
	h.Insert(base.Add(time.Second), 2, 1)
	h.Insert(base.Add(2*time.Second), 3, 1)

	slice := h.Slice(time.Hour, base.Add(2*time.Second))
	if len(slice) != 3 {
		t.Fatalf("expected 3 points, got %d", len(slice))
	}
	if slice[0].Price != 1 || slice[2].Price != 3 {
		t.Fatalf("expected oldest-first ordering, got %+v", slice)
	}
}

func TestHistory_EmptyMinMax(t *testing.T) {
	h := NewHistory(time.Hour)
	if _, _, ok := h.MinMax(time.Hour, time.Now()); ok {
		t.Fatal("expected ok=false for empty history")
	}
}
