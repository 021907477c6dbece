package pointdensity

import (
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
)

func TestLocalOutlierProbability_Validation(t *testing.T) {
	if _, err := LocalOutlierProbability(nil, nil, DefaultLoOPConfig()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty input: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := LocalOutlierProbability([]float64{1, 2}, []float64{1}, DefaultLoOPConfig()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("mismatched lengths: err = %v, want ErrInvalidArgument", err)
	}

	cfg := DefaultLoOPConfig()
	cfg.Lambda = -1
	if _, err := LocalOutlierProbability([]float64{1}, []float64{1}, cfg); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative lambda: err = %v, want ErrInvalidArgument", err)
	}

	cfg = DefaultLoOPConfig()
	cfg.Workers = -2
	if _, err := LocalOutlierProbability([]float64{1}, []float64{1}, cfg); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative workers: err = %v, want ErrInvalidArgument", err)
	}
}

// Four tightly clustered points and one far outlier: the outlier must score
// high, the cluster members low.
func TestLocalOutlierProbability_ClusterPlusOutlier(t *testing.T) {
	xs := []float64{0, 0, 1, 1, 50}
	ys := []float64{0, 1, 0, 1, 50}

	cfg := LoOPConfig{K: 3, Lambda: 1, Workers: 1}
	scores, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}

	if scores[4] <= 0.9 {
		t.Errorf("outlier score = %v, want > 0.9", scores[4])
	}
	for i := 0; i < 4; i++ {
		if scores[i] >= 0.3 {
			t.Errorf("cluster member %d score = %v, want < 0.3", i, scores[i])
		}
	}
}

func TestLocalOutlierProbability_ScoresWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	n := 300
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = rng.Float64() * 100
		ys[i] = rng.Float64() * 100
	}

	cfg := DefaultLoOPConfig()
	cfg.Workers = 4
	scores, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	if len(scores) != n {
		t.Fatalf("got %d scores, want %d", len(scores), n)
	}
	// The erf approximation may exceed [0, 1] by its error tolerance.
	for i, s := range scores {
		if s < -1e-6 || s > 1+1e-6 || math.IsNaN(s) {
			t.Fatalf("score[%d] = %v outside [0, 1]", i, s)
		}
	}
}

func TestLocalOutlierProbability_RemotePointScoresHighest(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	n := 100
	xs := make([]float64, 0, n+1)
	ys := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		xs = append(xs, rng.Float64()*10)
		ys = append(ys, rng.Float64()*10)
	}
	xs = append(xs, 1000)
	ys = append(ys, 1000)

	cfg := DefaultLoOPConfig()
	cfg.K = 10
	cfg.Workers = 2
	scores, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}

	remote := scores[n]
	for i := 0; i < n; i++ {
		if scores[i] >= remote {
			t.Fatalf("uniform point %d score %v >= remote point score %v", i, scores[i], remote)
		}
	}
	if remote < 0.9 {
		t.Errorf("remote point score = %v, want >= 0.9", remote)
	}
}

func TestLocalOutlierProbability_IdenticalPointsScoreZero(t *testing.T) {
	n := 50
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = 7
		ys[i] = -3
	}

	cfg := DefaultLoOPConfig()
	cfg.K = 5
	cfg.Workers = 3
	scores, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	for i, s := range scores {
		if math.Abs(s) > 1e-6 {
			t.Errorf("score[%d] = %v for identical points, want ~0", i, s)
		}
	}
}

func TestLocalOutlierProbability_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(32))
	n := 200
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = rng.NormFloat64() * 20
		ys[i] = rng.NormFloat64() * 20
	}

	cfg := DefaultLoOPConfig()
	cfg.K = 8
	cfg.Workers = 4

	first, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	second, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("score[%d] differs between identical runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestLocalOutlierProbability_SingleVsMultiThread(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	n := 200
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = rng.Float64() * 40
		ys[i] = rng.Float64() * 40
	}

	cfg := DefaultLoOPConfig()
	cfg.K = 6

	cfg.Workers = 1
	single, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("single-thread run: %v", err)
	}
	cfg.Workers = 7
	multi, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("multi-thread run: %v", err)
	}

	// Partial-sum grouping differs with the worker count, so only the
	// floating summation order may differ.
	for i := range single {
		if math.Abs(single[i]-multi[i]) > 1e-6 {
			t.Fatalf("score[%d]: single %v vs multi %v", i, single[i], multi[i])
		}
	}
}

func TestLocalOutlierProbability_KClampedToSize(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{0, 0, 0, 0, 0}

	cfg := LoOPConfig{K: 100, Lambda: 1, Workers: 1}
	scores, err := LocalOutlierProbability(xs, ys, cfg)
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("got %d scores, want 5", len(scores))
	}
}

func TestLocalOutlierProbability_SinglePoint(t *testing.T) {
	scores, err := LocalOutlierProbability([]float64{1}, []float64{1}, DefaultLoOPConfig())
	if err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	if math.Abs(scores[0]) > 1e-6 {
		t.Errorf("single point score = %v, want ~0", scores[0])
	}
}

func TestLocalOutlierProbability_ProgressPolledBetweenPhases(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{0, 0, 0, 0}

	var calls atomic.Int64
	cfg := LoOPConfig{K: 2, Lambda: 1, Workers: 2}
	cfg.Progress = func(completed, total int) bool {
		calls.Add(1)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		return true
	}

	if _, err := LocalOutlierProbability(xs, ys, cfg); err != nil {
		t.Fatalf("LocalOutlierProbability: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("progress polled %d times, want 3", calls.Load())
	}
}

func TestLocalOutlierProbability_Cancellation(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{0, 0, 0, 0}

	cfg := LoOPConfig{K: 2, Lambda: 1, Workers: 1}
	cfg.Progress = func(completed, total int) bool {
		return completed < 2
	}

	_, err := LocalOutlierProbability(xs, ys, cfg)
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
}
