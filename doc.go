// Package pointdensity computes local density and outlier statistics for
// large sets of 2D/3D point observations.
//
// Three building blocks form one pipeline: a bucketed KD-tree
// ([SpatialIndex]) answering bounded k-nearest-neighbour and fixed-radius
// queries under a pluggable [DistanceMetric], a uniform-cell spatial hash
// ([DensityGrid]) for exact fixed-radius multi-class neighbour counting, and
// [LocalOutlierProbability], a parallel three-phase LoOP pipeline scoring
// every point with an outlier probability in [0, 1]. All results are
// index-aligned with the input order regardless of worker count.
//
// Basic usage:
//
//	counts, err := pointdensity.CountDensity(xs, ys, classes,
//		pointdensity.DefaultDensityConfig(50.0))
//	// counts[i][c] is the number of class-c points within radius of point i
//
//	scores, err := pointdensity.LocalOutlierProbability(xs, ys,
//		pointdensity.DefaultLoOPConfig())
//	// scores[i] near 1 marks point i as a strong outlier
//
// Indexes are built once and queried read-only afterwards: insertion is not
// synchronized, and concurrent Add and query calls are undefined behaviour.
// Queries on a finished index may run concurrently with each other.
package pointdensity
