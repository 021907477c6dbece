package pointdensity

import (
	"fmt"
	"math"
)

// DefaultBucketCapacity is the leaf bucket size used when a SpatialIndex is
// created with a non-positive capacity.
const DefaultBucketCapacity = 32

// noChild marks a node as a leaf.
const noChild = -1

// SpatialIndex is a bucketed KD-tree over D-dimensional points carrying one
// payload of type T each. Points live in leaf buckets of at most
// bucketCapacity entries; a leaf that overflows is split on the widest axis
// of its bounding box and replaced in place by a stem with two fresh leaves.
// There is no rebalancing, merging, or deletion.
//
// Nodes are held in a flat arena addressed by index; stems store the indices
// of their two children, which keeps navigation O(1) without pointer cycles.
//
// Add and AddIfAbsent are not safe for concurrent use and must complete
// before any queries start. NearestNeighbours, FindNeighbours, ForEach and
// Bounds are read-only and may run concurrently with each other.
type SpatialIndex[T any] struct {
	dims      int
	bucketCap int
	nodes     []treeNode[T]
	size      int
}

// treeNode is either a leaf (left == noChild, owns a coordinate bucket) or a
// stem (owns two children and a split plane). min/max are the bounds of all
// points in the subtree: tight for fresh leaves, extended on every insert
// that descends through the node.
type treeNode[T any] struct {
	min, max []float64

	splitAxis   int
	splitValue  float64
	left, right int

	coords   []float64 // flat row-major bucket, len = count*dims
	payloads []T
}

func (nd *treeNode[T]) leaf() bool { return nd.left == noChild }

// NewSpatialIndex returns an empty index over dims-dimensional points.
// bucketCapacity below 1 selects DefaultBucketCapacity. dims must be
// positive.
func NewSpatialIndex[T any](dims, bucketCapacity int) *SpatialIndex[T] {
	if dims < 1 {
		panic(fmt.Sprintf("pointdensity: NewSpatialIndex: dims must be >= 1, got %d", dims))
	}
	if bucketCapacity < 1 {
		bucketCapacity = DefaultBucketCapacity
	}
	x := &SpatialIndex[T]{dims: dims, bucketCap: bucketCapacity}
	x.newLeaf()
	return x
}

// Len returns the number of points stored.
func (x *SpatialIndex[T]) Len() int { return x.size }

// Dims returns the dimensionality of stored points.
func (x *SpatialIndex[T]) Dims() int { return x.dims }

// Bounds returns copies of the tight min/max coordinate bounds over all
// stored points, or (nil, nil) if the index is empty.
func (x *SpatialIndex[T]) Bounds() (min, max []float64) {
	if x.size == 0 {
		return nil, nil
	}
	root := &x.nodes[0]
	min = append([]float64(nil), root.min...)
	max = append([]float64(nil), root.max...)
	return min, max
}

// Add inserts a point with its payload. The point slice is copied; the
// caller may reuse it. Coordinates must not change meaning after insertion:
// the tree partition is fixed at split time. Passing a point of the wrong
// dimensionality is a programmer error and panics.
func (x *SpatialIndex[T]) Add(point []float64, payload T) {
	if len(point) != x.dims {
		panic(fmt.Sprintf("pointdensity: Add: point has %d coordinates, index is %d-dimensional", len(point), x.dims))
	}
	leaf := x.descend(point, true)
	nd := &x.nodes[leaf]
	nd.coords = append(nd.coords, point...)
	nd.payloads = append(nd.payloads, payload)
	x.size++
	if len(nd.payloads) > x.bucketCap {
		x.splitLeaf(leaf)
	}
}

// AddIfAbsent inserts the point unless a point with exactly equal
// coordinates is already stored. Returns true if the point was inserted,
// false if a duplicate was found (the index is left unchanged).
func (x *SpatialIndex[T]) AddIfAbsent(point []float64, payload T) bool {
	if len(point) != x.dims {
		panic(fmt.Sprintf("pointdensity: AddIfAbsent: point has %d coordinates, index is %d-dimensional", len(point), x.dims))
	}
	leaf := x.descend(point, false)
	nd := &x.nodes[leaf]
	dims := x.dims
	for i := range nd.payloads {
		if coordsEqual(nd.coords[i*dims:(i+1)*dims], point) {
			return false
		}
	}
	x.Add(point, payload)
	return true
}

// descend walks from the root to the leaf whose region contains point.
// Points equal to a stem's split value always go left, so exact duplicates
// of a stored point land in the same leaf. When extend is true the bounds of
// every node on the path are widened to include the point.
func (x *SpatialIndex[T]) descend(point []float64, extend bool) int {
	i := 0
	for {
		nd := &x.nodes[i]
		if extend {
			for d := 0; d < x.dims; d++ {
				if point[d] < nd.min[d] {
					nd.min[d] = point[d]
				}
				if point[d] > nd.max[d] {
					nd.max[d] = point[d]
				}
			}
		}
		if nd.leaf() {
			return i
		}
		if point[nd.splitAxis] <= nd.splitValue {
			i = nd.left
		} else {
			i = nd.right
		}
	}
}

// newLeaf appends a fresh empty leaf to the arena and returns its index.
func (x *SpatialIndex[T]) newLeaf() int {
	min := make([]float64, x.dims)
	max := make([]float64, x.dims)
	for d := range min {
		min[d] = math.Inf(1)
		max[d] = math.Inf(-1)
	}
	x.nodes = append(x.nodes, treeNode[T]{
		min:   min,
		max:   max,
		left:  noChild,
		right: noChild,
	})
	return len(x.nodes) - 1
}

// splitLeaf converts an overflowing leaf into a stem with two new leaf
// children. The split axis is the widest axis of the leaf's bounding box and
// the split value the mean coordinate on that axis; if the mean partition
// degenerates the split moves just below the axis maximum. A leaf whose
// points are all identical cannot be split and simply keeps growing.
func (x *SpatialIndex[T]) splitLeaf(leaf int) {
	dims := x.dims

	axis, spread := 0, -1.0
	for d := 0; d < dims; d++ {
		if s := x.nodes[leaf].max[d] - x.nodes[leaf].min[d]; s > spread {
			axis, spread = d, s
		}
	}
	if spread <= 0 {
		return
	}

	// Allocating children may grow the arena, so node pointers are taken
	// only afterwards.
	left := x.newLeaf()
	right := x.newLeaf()
	nd := &x.nodes[leaf]

	count := len(nd.payloads)
	var sum float64
	for i := 0; i < count; i++ {
		sum += nd.coords[i*dims+axis]
	}
	split := sum / float64(count)

	onLeft := func(i int) bool { return nd.coords[i*dims+axis] <= split }
	leftCount := 0
	for i := 0; i < count; i++ {
		if onLeft(i) {
			leftCount++
		}
	}
	if leftCount == 0 || leftCount == count {
		// Rounding pushed the mean outside the coordinate range. Split at
		// the largest coordinate strictly below the axis maximum, which
		// leaves both sides non-empty whenever the spread is non-zero.
		axMax := nd.max[axis]
		split = math.Inf(-1)
		for i := 0; i < count; i++ {
			if v := nd.coords[i*dims+axis]; v < axMax && v > split {
				split = v
			}
		}
		onLeft = func(i int) bool { return nd.coords[i*dims+axis] <= split }
	}

	ln := &x.nodes[left]
	rn := &x.nodes[right]
	for i := 0; i < count; i++ {
		pt := nd.coords[i*dims : (i+1)*dims]
		child := rn
		if onLeft(i) {
			child = ln
		}
		child.coords = append(child.coords, pt...)
		child.payloads = append(child.payloads, nd.payloads[i])
		for d := 0; d < dims; d++ {
			if pt[d] < child.min[d] {
				child.min[d] = pt[d]
			}
			if pt[d] > child.max[d] {
				child.max[d] = pt[d]
			}
		}
	}

	nd.splitAxis = axis
	nd.splitValue = split
	nd.left = left
	nd.right = right
	nd.coords = nil
	nd.payloads = nil
}

// NearestNeighbours finds the count nearest stored points to location under
// the given metric, passing each (payload, distance) pair to sink. filter,
// when non-nil, excludes points whose payload it rejects before they become
// candidates.
//
// Ties in distance are kept in discovery order. When sorted is true the
// candidate heap is drained root-first, so the sink sees non-increasing
// distances (callers wanting ascending order reverse the result).
//
// The returned distance is the largest kept distance: the search radius that
// would have produced the same result set. found reports whether at least
// one neighbour reached the sink. An empty index yields (0, false); if every
// computed distance is NaN the result is (NaN, false) and the sink is never
// invoked, since NaN can never rank as closer than any kept candidate.
//
// A nil metric or sink is a programmer error and panics; a negative count
// returns ErrInvalidArgument.
func (x *SpatialIndex[T]) NearestNeighbours(location []float64, count int, sorted bool, metric DistanceMetric, filter func(T) bool, sink func(value T, dist float64)) (float64, bool, error) {
	if metric == nil {
		panic("pointdensity: NearestNeighbours: nil metric")
	}
	if sink == nil {
		panic("pointdensity: NearestNeighbours: nil sink")
	}
	if count < 0 {
		return 0, false, fmt.Errorf("pointdensity: NearestNeighbours: count %d: %w", count, ErrInvalidArgument)
	}
	if len(location) != x.dims {
		return 0, false, fmt.Errorf("pointdensity: NearestNeighbours: location has %d coordinates, index is %d-dimensional: %w", len(location), x.dims, ErrInvalidArgument)
	}
	if count == 0 || x.size == 0 {
		return 0, false, nil
	}

	h := NewBoundedHeap[T](count, MaxHeap)
	x.searchNearest(0, location, count, metric, filter, h)
	if h.Len() == 0 {
		return 0, false, nil
	}

	allNaN := true
	h.Visit(func(key float64, _ T) {
		if !math.IsNaN(key) {
			allNaN = false
		}
	})
	if allNaN {
		return math.NaN(), false, nil
	}

	worst, _ := h.PeekKey()
	if sorted {
		for h.Len() > 0 {
			d, v, _ := h.Pop()
			sink(v, d)
		}
	} else {
		h.Visit(func(key float64, value T) {
			sink(value, key)
		})
	}
	return worst, true, nil
}

// searchNearest is the branch-and-bound traversal behind NearestNeighbours.
// The max-heap root is the worst kept candidate; a subtree is descended only
// if its bounding box could hold something better, with the nearer child
// visited first.
func (x *SpatialIndex[T]) searchNearest(node int, loc []float64, count int, metric DistanceMetric, filter func(T) bool, h *BoundedHeap[T]) {
	nd := &x.nodes[node]
	if nd.leaf() {
		dims := x.dims
		for i := range nd.payloads {
			if filter != nil && !filter(nd.payloads[i]) {
				continue
			}
			d := metric.Distance(loc, nd.coords[i*dims:(i+1)*dims])
			if h.Len() < count {
				h.Offer(d, nd.payloads[i])
			} else if worst, _ := h.PeekKey(); d < worst {
				h.PopReplace(d, nd.payloads[i])
			}
		}
		return
	}

	first, second := nd.left, nd.right
	dFirst := metric.RectDistance(loc, x.nodes[first].min, x.nodes[first].max)
	dSecond := metric.RectDistance(loc, x.nodes[second].min, x.nodes[second].max)
	if dSecond < dFirst {
		first, second = second, first
		dFirst, dSecond = dSecond, dFirst
	}

	if couldImprove(h, count, dFirst) {
		x.searchNearest(first, loc, count, metric, filter, h)
	}
	if couldImprove(h, count, dSecond) {
		x.searchNearest(second, loc, count, metric, filter, h)
	}
}

// couldImprove reports whether a subtree at the given lower-bound distance
// can still contribute a candidate.
func couldImprove[T any](h *BoundedHeap[T], count int, rectDist float64) bool {
	if h.Len() < count {
		return true
	}
	worst, _ := h.PeekKey()
	return rectDist < worst
}

// FindNeighbours finds every stored point whose distance to location under
// the metric is strictly below radius, passing each (payload, distance) pair
// to sink in traversal order (unsorted). Returns whether at least one match
// was found.
//
// A nil metric or sink panics; a non-positive radius returns
// ErrInvalidArgument.
func (x *SpatialIndex[T]) FindNeighbours(location []float64, radius float64, metric DistanceMetric, sink func(value T, dist float64)) (bool, error) {
	if metric == nil {
		panic("pointdensity: FindNeighbours: nil metric")
	}
	if sink == nil {
		panic("pointdensity: FindNeighbours: nil sink")
	}
	if radius <= 0 {
		return false, fmt.Errorf("pointdensity: FindNeighbours: radius %v: %w", radius, ErrInvalidArgument)
	}
	if len(location) != x.dims {
		return false, fmt.Errorf("pointdensity: FindNeighbours: location has %d coordinates, index is %d-dimensional: %w", len(location), x.dims, ErrInvalidArgument)
	}
	if x.size == 0 {
		return false, nil
	}
	found := x.searchRadius(0, location, radius, metric, sink)
	return found, nil
}

func (x *SpatialIndex[T]) searchRadius(node int, loc []float64, radius float64, metric DistanceMetric, sink func(value T, dist float64)) bool {
	nd := &x.nodes[node]
	if nd.leaf() {
		dims := x.dims
		found := false
		for i := range nd.payloads {
			d := metric.Distance(loc, nd.coords[i*dims:(i+1)*dims])
			if d < radius {
				sink(nd.payloads[i], d)
				found = true
			}
		}
		return found
	}
	found := false
	if metric.RectDistance(loc, x.nodes[nd.left].min, x.nodes[nd.left].max) < radius {
		found = x.searchRadius(nd.left, loc, radius, metric, sink) || found
	}
	if metric.RectDistance(loc, x.nodes[nd.right].min, x.nodes[nd.right].max) < radius {
		found = x.searchRadius(nd.right, loc, radius, metric, sink) || found
	}
	return found
}

// ForEach visits every stored point exactly once in unspecified order. The
// coordinate slice passed to action aliases internal storage and must not be
// modified or retained.
func (x *SpatialIndex[T]) ForEach(action func(point []float64, payload T)) {
	dims := x.dims
	for n := range x.nodes {
		nd := &x.nodes[n]
		if !nd.leaf() {
			continue
		}
		for i := range nd.payloads {
			action(nd.coords[i*dims:(i+1)*dims], nd.payloads[i])
		}
	}
}

func coordsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
