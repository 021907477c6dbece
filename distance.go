package pointdensity

// DistanceMetric bundles a point-to-point distance with the matching lower
// bound from a point to an axis-aligned box. Branch-and-bound traversal in
// the spatial index compares query distances against RectDistance of a
// subtree's bounding box; carrying both in one value keeps the pruning bound
// and the metric consistent by construction.
type DistanceMetric interface {
	// Distance returns the distance between points a and b.
	Distance(a, b []float64) float64

	// RectDistance returns a lower bound on Distance(p, q) over all points q
	// inside the axis-aligned box [min, max]. It must be 0 when p lies
	// inside the box.
	RectDistance(p, min, max []float64) float64
}

// SquaredEuclidean computes squared Euclidean distance for any
// dimensionality. Skipping the square root keeps comparisons cheap and
// preserves ordering; radii passed to radius searches under this metric must
// be squared by the caller.
type SquaredEuclidean struct{}

func (SquaredEuclidean) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (SquaredEuclidean) RectDistance(p, min, max []float64) float64 {
	var sum float64
	for i := range p {
		d := boxGap(p[i], min[i], max[i])
		sum += d * d
	}
	return sum
}

// SquaredEuclidean2D is the two-dimensional specialization of
// SquaredEuclidean with the coordinate loop unrolled.
type SquaredEuclidean2D struct{}

func (SquaredEuclidean2D) Distance(a, b []float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

func (SquaredEuclidean2D) RectDistance(p, min, max []float64) float64 {
	dx := boxGap(p[0], min[0], max[0])
	dy := boxGap(p[1], min[1], max[1])
	return dx*dx + dy*dy
}

// SquaredEuclidean3D is the three-dimensional specialization of
// SquaredEuclidean with the coordinate loop unrolled.
type SquaredEuclidean3D struct{}

func (SquaredEuclidean3D) Distance(a, b []float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

func (SquaredEuclidean3D) RectDistance(p, min, max []float64) float64 {
	dx := boxGap(p[0], min[0], max[0])
	dy := boxGap(p[1], min[1], max[1])
	dz := boxGap(p[2], min[2], max[2])
	return dx*dx + dy*dy + dz*dz
}

// Manhattan computes the Manhattan (L1 / city-block) distance.
type Manhattan struct{}

func (Manhattan) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func (Manhattan) RectDistance(p, min, max []float64) float64 {
	var sum float64
	for i := range p {
		sum += boxGap(p[i], min[i], max[i])
	}
	return sum
}

// boxGap returns the distance from v to the interval [lo, hi] along one
// axis, 0 when v lies inside.
func boxGap(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}
