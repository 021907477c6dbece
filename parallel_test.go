package pointdensity

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSplitRange_CoversAllIndicesOnce(t *testing.T) {
	tests := []struct {
		n, workers int
	}{
		{0, 4}, {1, 1}, {1, 8}, {7, 3}, {100, 7}, {100, 1}, {5, 5}, {5, 100},
	}
	for _, tt := range tests {
		ranges := splitRange(tt.n, tt.workers)
		covered := make([]int, tt.n)
		prevEnd := 0
		for _, r := range ranges {
			if r.start != prevEnd {
				t.Fatalf("n=%d workers=%d: range starts at %d, want %d", tt.n, tt.workers, r.start, prevEnd)
			}
			if r.end <= r.start {
				t.Fatalf("n=%d workers=%d: empty range %+v", tt.n, tt.workers, r)
			}
			for i := r.start; i < r.end; i++ {
				covered[i]++
			}
			prevEnd = r.end
		}
		if tt.n > 0 && prevEnd != tt.n {
			t.Fatalf("n=%d workers=%d: ranges end at %d", tt.n, tt.workers, prevEnd)
		}
		for i, c := range covered {
			if c != 1 {
				t.Fatalf("n=%d workers=%d: index %d covered %d times", tt.n, tt.workers, i, c)
			}
		}
		if len(ranges) > tt.workers {
			t.Fatalf("n=%d workers=%d: %d ranges", tt.n, tt.workers, len(ranges))
		}
	}
}

func TestRunPhase_AllRangesExecute(t *testing.T) {
	var total atomic.Int64
	err := runPhase(splitRange(1000, 8), func(_, start, end int) error {
		total.Add(int64(end - start))
		return nil
	})
	if err != nil {
		t.Fatalf("runPhase: %v", err)
	}
	if total.Load() != 1000 {
		t.Errorf("workers processed %d items, want 1000", total.Load())
	}
}

func TestRunPhase_ErrorSurfacesAfterJoin(t *testing.T) {
	boom := errors.New("boom")
	var completed atomic.Int64

	err := runPhase(splitRange(100, 4), func(w, start, end int) error {
		if w == 1 {
			return boom
		}
		completed.Add(1)
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("runPhase err = %v, want boom", err)
	}
	// Every sibling worker ran to completion before the error surfaced.
	if completed.Load() != 3 {
		t.Errorf("%d sibling workers completed, want 3", completed.Load())
	}
}
