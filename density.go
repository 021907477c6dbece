package pointdensity

import (
	"fmt"
	"runtime"
)

// DensityConfig controls fixed-radius multi-class density counting.
// Start with [DefaultDensityConfig] and override the fields you need.
type DensityConfig struct {
	// Radius is the neighbourhood radius. Points strictly closer than
	// Radius are counted. Must be > 0.
	Radius float64

	// MaxClass is the highest class label occurring in the data. Counting
	// allocates one slot per class per point, so it must be accurate and
	// should be small. 0 means all points share class 0.
	MaxClass int

	// OriginAtZero declares that the coordinates are already normalized to
	// a (0, 0) origin, skipping the extents scan during grid construction.
	OriginAtZero bool

	// Mode selects the counting strategy. CountAuto picks sequential
	// counting for one worker and the lock-free duplicate-comparison
	// strategy otherwise. Default: CountAuto.
	Mode CountingMode

	// Workers is the number of counting goroutines. 0 means
	// runtime.NumCPU(); 1 forces deterministic sequential execution.
	Workers int
}

// DefaultDensityConfig returns a DensityConfig with reasonable defaults.
func DefaultDensityConfig(radius float64) DensityConfig {
	return DensityConfig{
		Radius: radius,
		Mode:   CountAuto,
	}
}

// CountDensity counts, for every point, how many points of each class lie
// strictly within cfg.Radius, including the point itself in its own class
// count. classes may be nil for unlabelled data. The result is index-aligned
// with the input: result[i][c] is the number of class-c points within radius
// of point i.
func CountDensity(xs, ys []float64, classes []int32, cfg DensityConfig) ([][]int32, error) {
	if cfg.Mode == "" {
		cfg.Mode = CountAuto
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("pointdensity: CountDensity: Workers %d: %w", cfg.Workers, ErrInvalidArgument)
	}

	grid, err := NewDensityGrid(xs, ys, classes, cfg.Radius, cfg.OriginAtZero)
	if err != nil {
		return nil, err
	}
	return grid.CountAll(cfg.MaxClass, cfg.Mode, cfg.Workers)
}

// CountDensityNear counts, for every probe point (px, py), how many indexed
// points of each class lie strictly within cfg.Radius. Probes are
// independent of the indexed set and receive no self-count.
func CountDensityNear(xs, ys []float64, classes []int32, px, py []float64, cfg DensityConfig) ([][]int32, error) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("pointdensity: CountDensityNear: Workers %d: %w", cfg.Workers, ErrInvalidArgument)
	}

	grid, err := NewDensityGrid(xs, ys, classes, cfg.Radius, cfg.OriginAtZero)
	if err != nil {
		return nil, err
	}
	return grid.CountNear(px, py, cfg.MaxClass, cfg.Workers)
}
