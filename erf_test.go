package pointdensity

import (
	"math"
	"testing"
)

func TestErfApprox_MatchesStdlibWithinTolerance(t *testing.T) {
	// The Abramowitz-Stegun 7.1.26 form is accurate to ~3e-7 absolute.
	for x := -6.0; x <= 6.0; x += 0.001 {
		got := erfApprox(x)
		want := math.Erf(x)
		if math.Abs(got-want) > 3e-7 {
			t.Fatalf("erfApprox(%v) = %v, math.Erf = %v, diff %v", x, got, want, got-want)
		}
	}
}

func TestErfApprox_Saturation(t *testing.T) {
	for _, x := range []float64{6.2, 10, 1000, math.Inf(1)} {
		if got := erfApprox(x); got != 1 {
			t.Errorf("erfApprox(%v) = %v, want 1", x, got)
		}
		if got := erfApprox(-x); got != -1 {
			t.Errorf("erfApprox(%v) = %v, want -1", -x, got)
		}
	}
}

func TestErfApprox_OddSymmetry(t *testing.T) {
	for x := 0.0; x <= 6.0; x += 0.01 {
		if erfApprox(-x) != -erfApprox(x) {
			t.Fatalf("erfApprox not odd at %v", x)
		}
	}
}

func TestErfApprox_Zero(t *testing.T) {
	// The rational form does not collapse to exactly 0 at the origin; it
	// only has to stay inside the stated error envelope.
	if got := erfApprox(0); math.Abs(got) > 3e-7 {
		t.Errorf("erfApprox(0) = %v, want ~0", got)
	}
}
