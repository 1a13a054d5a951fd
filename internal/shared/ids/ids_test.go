package ids

import (
	"testing"
	"time"
)

func TestAtIsMonotonic(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := At(ts)
	for i := 0; i < 100; i++ {
		next := At(ts)
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
	if len(prev) != 26 {
		t.Fatalf("unexpected ulid length %d", len(prev))
	}
}
