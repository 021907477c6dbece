package pointdensity

import (
	"fmt"
	"math"
	"runtime"

	"gonum.org/v1/gonum/floats"
)

// loopPhases is the number of barrier-separated phases in the LoOP pipeline.
const loopPhases = 3

// LoOPConfig controls the Local Outlier Probability pipeline.
// Start with [DefaultLoOPConfig] and override the fields you need.
type LoOPConfig struct {
	// K is the neighbourhood size (self-exclusive). Clamped to [1, n].
	// Default: 20.
	K int

	// Lambda scales the score normalization: larger values need a larger
	// deviation before a point scores high. Must be > 0. Default: 3.
	Lambda float64

	// Workers is the number of goroutines per phase. 0 means
	// runtime.NumCPU(); 1 forces deterministic single-threaded execution.
	Workers int

	// BucketCapacity is the leaf bucket size of the spatial index built
	// over the input. 0 selects DefaultBucketCapacity.
	BucketCapacity int

	// Progress, when non-nil, is polled after each completed phase.
	// Returning false cancels the pipeline with ErrCanceled.
	Progress ProgressFunc
}

// DefaultLoOPConfig returns a LoOPConfig with reasonable defaults.
func DefaultLoOPConfig() LoOPConfig {
	return LoOPConfig{K: 20, Lambda: 3}
}

// LocalOutlierProbability computes one outlier-probability score per point,
// index-aligned with the input. Scores are approximately in [0, 1]: values
// near 0 mark points inside dense regions, values near 1 strong outliers.
//
// The pipeline has three barrier-separated phases over a shared spatial
// index: per-point probabilistic distances (root mean square of the K
// nearest neighbour distances), probabilistic local outlier factors (the
// ratio of a point's probabilistic distance to its neighbours' average), and
// erf normalization of the deviations. Workers process contiguous index
// ranges; the output slot of a point never depends on the partitioning.
func LocalOutlierProbability(xs, ys []float64, cfg LoOPConfig) ([]float64, error) {
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("pointdensity: LocalOutlierProbability: empty point set: %w", ErrInvalidArgument)
	}
	if len(ys) != n {
		return nil, fmt.Errorf("pointdensity: LocalOutlierProbability: %d x values but %d y values: %w", n, len(ys), ErrInvalidArgument)
	}
	if cfg.Lambda == 0 {
		cfg.Lambda = 3
	}
	if cfg.Lambda < 0 || math.IsNaN(cfg.Lambda) {
		return nil, fmt.Errorf("pointdensity: LocalOutlierProbability: Lambda %v: %w", cfg.Lambda, ErrInvalidArgument)
	}
	if cfg.K == 0 {
		cfg.K = 20
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("pointdensity: LocalOutlierProbability: Workers %d: %w", cfg.Workers, ErrInvalidArgument)
	}

	k := cfg.K
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	index := NewSpatialIndex[int32](2, cfg.BucketCapacity)
	point := make([]float64, 2)
	for i := 0; i < n; i++ {
		point[0], point[1] = xs[i], ys[i]
		index.Add(point, int32(i))
	}

	metric := SquaredEuclidean2D{}
	pd := make([]float64, n)
	neighbours := make([][]int32, n)
	plof := make([]float64, n)
	scores := make([]float64, n)
	ranges := splitRange(n, cfg.Workers)
	partials := make([]float64, len(ranges))

	// Phase 1: probabilistic distance. The query asks for k+1 neighbours
	// because the point itself is indexed and comes back at distance 0.
	err := runPhase(ranges, func(_, start, end int) error {
		loc := make([]float64, 2)
		ids := make([]int32, 0, k+1)
		dists := make([]float64, 0, k+1)
		for i := start; i < end; i++ {
			loc[0], loc[1] = xs[i], ys[i]
			ids = ids[:0]
			dists = dists[:0]
			_, _, err := index.NearestNeighbours(loc, k+1, true, metric, nil, func(id int32, d float64) {
				ids = append(ids, id)
				dists = append(dists, d)
			})
			if err != nil {
				return err
			}

			// Drop the point itself. Among coincident points the query
			// point may have been crowded out of the candidate set; the
			// sorted drain puts the worst candidate first, so slot 0 is
			// the right stand-in to discard then.
			selfAt := 0
			for j, id := range ids {
				if id == int32(i) {
					selfAt = j
					break
				}
			}
			ids = append(ids[:selfAt], ids[selfAt+1:]...)
			dists = append(dists[:selfAt], dists[selfAt+1:]...)

			neighbours[i] = append([]int32(nil), ids...)
			if len(dists) == 0 {
				pd[i] = 0
				continue
			}
			// Distances are squared Euclidean, so this is the root mean
			// square distance to the neighbourhood.
			pd[i] = math.Sqrt(floats.Sum(dists) / float64(len(dists)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := pollProgress(cfg.Progress, 1); err != nil {
		return nil, err
	}

	// Phase 2: probabilistic local outlier factor, with a partial sum of
	// squared deviations per worker. A zero neighbourhood sum means a
	// perfectly dense cluster (no deviation); non-finite ratios are clamped
	// to 1 and excluded from the deviation sum.
	err = runPhase(ranges, func(w, start, end int) error {
		var nplof float64
		for i := start; i < end; i++ {
			var sum float64
			for _, nb := range neighbours[i] {
				sum += pd[nb]
			}
			if sum == 0 {
				plof[i] = 1
				continue
			}
			v := pd[i] * float64(len(neighbours[i])) / sum
			if math.IsNaN(v) || math.IsInf(v, 0) {
				plof[i] = 1
				continue
			}
			if v < 1 {
				v = 1
			}
			plof[i] = v
			d := v - 1
			nplof += d * d
		}
		partials[w] = nplof
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := pollProgress(cfg.Progress, 2); err != nil {
		return nil, err
	}

	// Phase 3: reduce the partial sums and map deviations through erf.
	// The normalization factor is clamped to 1 so uniform data (nplof ~ 0)
	// divides by 1 and collapses to erf(0) = 0 instead of dividing by zero.
	normFactor := cfg.Lambda * math.Sqrt(floats.Sum(partials)/float64(n))
	if normFactor < 1 || math.IsNaN(normFactor) {
		normFactor = 1
	}
	invDenom := 1 / (normFactor * math.Sqrt2)

	err = runPhase(ranges, func(_, start, end int) error {
		for i := start; i < end; i++ {
			scores[i] = erfApprox((plof[i] - 1) * invDenom)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := pollProgress(cfg.Progress, loopPhases); err != nil {
		return nil, err
	}

	return scores, nil
}

func pollProgress(progress ProgressFunc, completed int) error {
	if progress == nil {
		return nil
	}
	if !progress(completed, loopPhases) {
		return fmt.Errorf("pointdensity: LocalOutlierProbability: %w", ErrCanceled)
	}
	return nil
}
