package pointdensity

import "math"

// erfSaturation is the input magnitude beyond which the approximation
// returns exactly ±1; erf is already 1 to within double precision there.
const erfSaturation = 6.1836

// erfApprox evaluates the Gaussian error function with the Abramowitz &
// Stegun 7.1.26 rational approximation (maximum absolute error about 3e-7).
// The approximation is closed-form and branch-free inside the domain, which
// keeps scores bit-identical across platforms.
func erfApprox(x float64) float64 {
	if x < 0 {
		return -erfApprox(-x)
	}
	if x > erfSaturation {
		return 1
	}
	const (
		p  = 0.3275911
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
	)
	t := 1 / (1 + p*x)
	poly := t * (a1 + t*(a2+t*(a3+t*(a4+t*a5))))
	return 1 - poly*math.Exp(-x*x)
}
