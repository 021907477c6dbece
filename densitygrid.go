package pointdensity

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// maxGridCells bounds the memory used by the cell array. When the point
// extents at binWidth = radius would exceed it, the bin width is scaled by
// √2 until the cell count fits. A wider bin is still correct (the adjacent
// cells still cover the full radius); it only prunes less.
const maxGridCells = 100_000

// densityFlushBatch is the delta-buffer size at which a delta-merge worker
// hands its accumulated matches to the reducer.
const densityFlushBatch = 4096

// CountingMode selects the neighbour-counting strategy of a DensityGrid.
type CountingMode string

const (
	// CountAuto picks CountSequential for one worker and CountLockFree
	// otherwise.
	CountAuto CountingMode = "auto"

	// CountSequential walks cells one by one, materializing each within-
	// radius pair symmetrically (when A counts B, B counts A) using the
	// forward half of the 8-neighbourhood.
	CountSequential CountingMode = "sequential"

	// CountLockFree assigns each worker a disjoint set of cells. A worker
	// counts only for points in its own cells but scans the full
	// 8-neighbourhood, so comparisons shared between cells are recomputed
	// (~2× the work) and no two workers ever write the same result row.
	CountLockFree CountingMode = "lockfree"

	// CountDeltaMerge keeps the sequential mode's symmetric pair sharing:
	// workers walk disjoint cell sets, accumulate (point, class) increments
	// into thread-local buffers, and flush them in batches to a single
	// reducer that owns the result array.
	CountDeltaMerge CountingMode = "deltamerge"
)

// DensityGrid is a uniform-cell spatial hash over a fixed 2D point set, used
// for exact fixed-radius multi-class neighbour counting. The grid is built
// once and is immutable afterwards; every cell is at least radius wide, so
// all points within radius of a point lie in its own cell or one of the 8
// adjacent cells.
//
// Result memory is proportional to pointCount × (maxClass+1), which makes
// the counter unsuitable for very large class ranges.
type DensityGrid struct {
	xs, ys  []float64
	classes []int32
	radius  float64
	r2      float64

	binWidth         float64
	originX, originY float64
	cols, rows       int
	cells            [][]int32 // flat rows*cols; nil means empty
}

// NewDensityGrid buckets the given points into a uniform grid sized for
// fixed-radius searches. classes carries one non-negative label per point
// and may be nil, in which case every point gets class 0. When originAtZero
// is true the grid origin is pinned at (0, 0) instead of the coordinate
// minimum, avoiding an extents scan for data that is already normalized.
func NewDensityGrid(xs, ys []float64, classes []int32, radius float64, originAtZero bool) (*DensityGrid, error) {
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("pointdensity: NewDensityGrid: empty point set: %w", ErrInvalidArgument)
	}
	if len(ys) != n {
		return nil, fmt.Errorf("pointdensity: NewDensityGrid: %d x values but %d y values: %w", n, len(ys), ErrInvalidArgument)
	}
	if classes != nil && len(classes) != n {
		return nil, fmt.Errorf("pointdensity: NewDensityGrid: %d points but %d class labels: %w", n, len(classes), ErrInvalidArgument)
	}
	if radius <= 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("pointdensity: NewDensityGrid: radius %v: %w", radius, ErrInvalidArgument)
	}
	if classes == nil {
		classes = make([]int32, n)
	}

	g := &DensityGrid{
		xs:      xs,
		ys:      ys,
		classes: classes,
		radius:  radius,
		r2:      radius * radius,
	}

	maxX, maxY := floats.Max(xs), floats.Max(ys)
	if originAtZero {
		g.originX, g.originY = 0, 0
	} else {
		g.originX, g.originY = floats.Min(xs), floats.Min(ys)
	}

	g.binWidth = radius
	for {
		g.cols = int((maxX-g.originX)/g.binWidth) + 1
		g.rows = int((maxY-g.originY)/g.binWidth) + 1
		if g.cols*g.rows <= maxGridCells {
			break
		}
		g.binWidth *= math.Sqrt2
	}

	g.cells = make([][]int32, g.cols*g.rows)
	for i := 0; i < n; i++ {
		c := g.cellIndex(xs[i], ys[i])
		g.cells[c] = append(g.cells[c], int32(i))
	}
	return g, nil
}

// Radius returns the search radius the grid was built for.
func (g *DensityGrid) Radius() float64 { return g.radius }

// BinWidth returns the effective cell width, radius or larger.
func (g *DensityGrid) BinWidth() float64 { return g.binWidth }

// cellIndex maps a coordinate to its flat cell index, clamped to the grid.
// Clamping only matters for probe points outside the indexed extents; the
// distance test still rejects anything beyond the radius.
func (g *DensityGrid) cellIndex(x, y float64) int {
	ix := int((x - g.originX) / g.binWidth)
	iy := int((y - g.originY) / g.binWidth)
	return g.clampedIndex(ix, iy)
}

func (g *DensityGrid) clampedIndex(ix, iy int) int {
	if ix < 0 {
		ix = 0
	} else if ix >= g.cols {
		ix = g.cols - 1
	}
	if iy < 0 {
		iy = 0
	} else if iy >= g.rows {
		iy = g.rows - 1
	}
	return iy*g.cols + ix
}

// CountAll counts, for every indexed point, how many indexed points of each
// class lie strictly within the radius, the point itself included in its own
// class count. The result is index-aligned with the input: result[i][c] is
// the number of class-c points within radius of point i.
//
// Class labels above maxClass are the caller's contract violation; behaviour
// is undefined (out-of-range writes will panic). workers below 2 runs
// sequentially regardless of mode.
func (g *DensityGrid) CountAll(maxClass int, mode CountingMode, workers int) ([][]int32, error) {
	if err := validateCounting(maxClass, mode, workers); err != nil {
		return nil, err
	}

	n := len(g.xs)
	results := makeCountRows(n, maxClass)
	for i := 0; i < n; i++ {
		results[i][g.classes[i]]++
	}

	if workers < 2 || mode == CountSequential {
		g.countSequential(results)
		return results, nil
	}
	if mode == CountDeltaMerge {
		g.countDeltaMerge(results, workers)
		return results, nil
	}
	g.countLockFree(results, workers)
	return results, nil
}

// CountNear counts, for every probe point, how many indexed points of each
// class lie strictly within the radius. Probes need not coincide with
// indexed points, so the full 9-cell neighbourhood is always scanned and no
// self-count is added. The result is index-aligned with the probe order.
func (g *DensityGrid) CountNear(px, py []float64, maxClass int, workers int) ([][]int32, error) {
	if len(px) == 0 || len(px) != len(py) {
		return nil, fmt.Errorf("pointdensity: CountNear: %d x probes and %d y probes: %w", len(px), len(py), ErrInvalidArgument)
	}
	if err := validateCounting(maxClass, CountAuto, workers); err != nil {
		return nil, err
	}

	m := len(px)
	results := makeCountRows(m, maxClass)

	countRange := func(start, end int) {
		for i := start; i < end; i++ {
			ix := int((px[i] - g.originX) / g.binWidth)
			iy := int((py[i] - g.originY) / g.binWidth)
			row := results[i]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					g.scanCellInto(px[i], py[i], ix+dx, iy+dy, -1, row)
				}
			}
		}
	}

	if workers < 2 || m < 2 {
		countRange(0, m)
		return results, nil
	}

	// Probe ranges are disjoint, so workers never share a result row.
	var wg sync.WaitGroup
	for _, r := range splitRange(m, workers) {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			countRange(start, end)
		}(r.start, r.end)
	}
	wg.Wait()
	return results, nil
}

// scanCellInto adds the class counts of all points in cell (ix, iy) that lie
// strictly within the radius of (x, y) into row, skipping point skip (-1 to
// keep all).
func (g *DensityGrid) scanCellInto(x, y float64, ix, iy int, skip int32, row []int32) {
	if ix < 0 || ix >= g.cols || iy < 0 || iy >= g.rows {
		return
	}
	cell := g.cells[iy*g.cols+ix]
	for _, j := range cell {
		if j == skip {
			continue
		}
		dx := x - g.xs[j]
		dy := y - g.ys[j]
		if dx*dx+dy*dy < g.r2 {
			row[g.classes[j]]++
		}
	}
}

// countSequential materializes the undirected neighbour relation
// symmetrically: every within-radius pair is found once, in the own cell or
// in the forward half of the 8-neighbourhood, and both endpoints are
// counted.
func (g *DensityGrid) countSequential(results [][]int32) {
	for iy := 0; iy < g.rows; iy++ {
		for ix := 0; ix < g.cols; ix++ {
			g.countCellSymmetric(ix, iy, results)
		}
	}
}

// forwardNeighbours is the half of the 8-neighbourhood scanned by the
// symmetric strategies; the other half is covered when those cells take
// their own turn.
var forwardNeighbours = [4][2]int{{1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func (g *DensityGrid) countCellSymmetric(ix, iy int, results [][]int32) {
	cell := g.cells[iy*g.cols+ix]
	if cell == nil {
		return
	}

	for a := 0; a < len(cell); a++ {
		i := cell[a]
		for b := a + 1; b < len(cell); b++ {
			j := cell[b]
			g.countPair(i, j, results)
		}
	}
	for _, d := range forwardNeighbours {
		nx, ny := ix+d[0], iy+d[1]
		if nx < 0 || nx >= g.cols || ny < 0 || ny >= g.rows {
			continue
		}
		other := g.cells[ny*g.cols+nx]
		for _, i := range cell {
			for _, j := range other {
				g.countPair(i, j, results)
			}
		}
	}
}

func (g *DensityGrid) countPair(i, j int32, results [][]int32) {
	dx := g.xs[i] - g.xs[j]
	dy := g.ys[i] - g.ys[j]
	if dx*dx+dy*dy < g.r2 {
		results[i][g.classes[j]]++
		results[j][g.classes[i]]++
	}
}

// occupiedCellsByLoad returns the indices of non-empty cells sorted by
// descending occupancy, so a round-robin assignment across workers balances
// load.
func (g *DensityGrid) occupiedCellsByLoad() []int {
	cells := make([]int, 0, len(g.cells))
	for c := range g.cells {
		if g.cells[c] != nil {
			cells = append(cells, c)
		}
	}
	sort.Slice(cells, func(a, b int) bool {
		la, lb := len(g.cells[cells[a]]), len(g.cells[cells[b]])
		if la != lb {
			return la > lb
		}
		return cells[a] < cells[b]
	})
	return cells
}

// countLockFree runs the duplicate-comparison strategy: each worker owns a
// disjoint set of cells and, for every point in an owned cell, scans the
// point's own cell plus all 8 neighbours, incrementing only that point's
// row. Pairs spanning two cells are therefore compared twice, once by each
// owner, in exchange for zero cross-worker writes and no locking.
func (g *DensityGrid) countLockFree(results [][]int32, workers int) {
	owned := g.occupiedCellsByLoad()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for o := w; o < len(owned); o += workers {
				c := owned[o]
				ix, iy := c%g.cols, c/g.cols
				for _, i := range g.cells[c] {
					row := results[i]
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							g.scanCellInto(g.xs[i], g.ys[i], ix+dx, iy+dy, i, row)
						}
					}
				}
			}
		}(w)
	}
	wg.Wait()
}

// countDelta is one pending increment produced by a delta-merge worker.
type countDelta struct {
	id    int32
	class int32
}

// countDeltaMerge keeps the symmetric pair sharing of the sequential
// strategy under parallelism. Workers own disjoint cell sets (round-robin
// over occupancy-sorted cells), collect increments into thread-local
// buffers, and flush full batches to a channel; the caller's goroutine is
// the single reducer that applies them. Counts are additive, so the merge
// order does not affect the result.
func (g *DensityGrid) countDeltaMerge(results [][]int32, workers int) {
	owned := g.occupiedCellsByLoad()
	deltas := make(chan []countDelta, workers*2)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			buf := make([]countDelta, 0, densityFlushBatch)
			emit := func(i, j int32) {
				dx := g.xs[i] - g.xs[j]
				dy := g.ys[i] - g.ys[j]
				if dx*dx+dy*dy >= g.r2 {
					return
				}
				buf = append(buf,
					countDelta{id: i, class: g.classes[j]},
					countDelta{id: j, class: g.classes[i]},
				)
				if len(buf) >= densityFlushBatch {
					deltas <- buf
					buf = make([]countDelta, 0, densityFlushBatch)
				}
			}
			for o := w; o < len(owned); o += workers {
				c := owned[o]
				ix, iy := c%g.cols, c/g.cols
				cell := g.cells[c]
				for a := 0; a < len(cell); a++ {
					for b := a + 1; b < len(cell); b++ {
						emit(cell[a], cell[b])
					}
				}
				for _, d := range forwardNeighbours {
					nx, ny := ix+d[0], iy+d[1]
					if nx < 0 || nx >= g.cols || ny < 0 || ny >= g.rows {
						continue
					}
					other := g.cells[ny*g.cols+nx]
					for _, i := range cell {
						for _, j := range other {
							emit(i, j)
						}
					}
				}
			}
			if len(buf) > 0 {
				deltas <- buf
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(deltas)
	}()

	for batch := range deltas {
		for _, d := range batch {
			results[d.id][d.class]++
		}
	}
}

func validateCounting(maxClass int, mode CountingMode, workers int) error {
	if maxClass < 0 {
		return fmt.Errorf("pointdensity: maxClass %d: %w", maxClass, ErrInvalidArgument)
	}
	if workers < 1 {
		return fmt.Errorf("pointdensity: workers %d: %w", workers, ErrInvalidArgument)
	}
	switch mode {
	case CountAuto, CountSequential, CountLockFree, CountDeltaMerge:
		return nil
	default:
		return fmt.Errorf("pointdensity: counting mode %q: %w", mode, ErrInvalidArgument)
	}
}

func makeCountRows(n, maxClass int) [][]int32 {
	rows := make([][]int32, n)
	for i := range rows {
		rows[i] = make([]int32, maxClass+1)
	}
	return rows
}
