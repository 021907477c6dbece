package pointdensity

import "golang.org/x/sync/errgroup"

// indexRange is a contiguous [Start, End) span of point indices owned by a
// single worker. Output slots are index-aligned with the input, so workers
// never write outside their own span.
type indexRange struct {
	start, end int
}

// splitRange partitions n items into contiguous ranges of ceil(n/workers)
// items each. The last range may be shorter; workers beyond n items receive
// no range at all.
func splitRange(n, workers int) []indexRange {
	if workers < 1 {
		workers = 1
	}
	per := (n + workers - 1) / workers
	ranges := make([]indexRange, 0, workers)
	for start := 0; start < n; start += per {
		end := start + per
		if end > n {
			end = n
		}
		ranges = append(ranges, indexRange{start: start, end: end})
	}
	return ranges
}

// runPhase runs fn over every range on its own goroutine and blocks until
// all of them finish. w is the zero-based worker number, usable for partial
// accumulators. A worker error surfaces only after every sibling has been
// joined, so no goroutine outlives the phase barrier.
func runPhase(ranges []indexRange, fn func(w, start, end int) error) error {
	var g errgroup.Group
	for w, r := range ranges {
		w, r := w, r
		g.Go(func() error {
			return fn(w, r.start, r.end)
		})
	}
	return g.Wait()
}
