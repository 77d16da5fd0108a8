// Package physics implements the closed-form MRI signal equations the forward
// models are assembled from: the spoiled gradient-echo steady state and the
// exponential T2* decay, plus the linear relaxation-rate relation for a
// gadolinium-based contrast agent.
package physics

import "math"

// T10Blood is the pre-contrast longitudinal relaxation time of arterial blood
// in seconds. It is a fixed literature value at 3 T, not a fitted parameter.
const T10Blood = 1.8

// SPGR returns the steady-state spoiled gradient-echo signal
//
//	S(R1) = (1 - exp(-TR*R1)) / (1 - cos(alpha)*exp(-TR*R1))
//
// for a longitudinal relaxation rate r1 (1/s), repetition time tr (s) and
// flip angle alpha in radians. The proton density and receive gain factors
// cancel in every ratio the models form, so they are omitted here. S is
// strictly increasing in r1 for alpha in (0, pi/2], with S(0)=0 and S->1 as
// r1 grows.
func SPGR(r1, tr, alpha float64) float64 {
	e1 := math.Exp(-tr * r1)
	return (1.0 - e1) / (1.0 - math.Cos(alpha)*e1)
}

// T2StarDecay returns the transverse attenuation exp(-TE*R2*) for an
// effective transverse relaxation rate r2 (1/s) and echo time te (s).
func T2StarDecay(r2, te float64) float64 {
	return math.Exp(-te * r2)
}

// Rate returns the relaxation rate baseline + relaxivity*conc. Fast-exchange
// linearity holds for both R1 and R2*, so the same relation serves either
// with the appropriate relaxivity.
func Rate(baseline, relaxivity, conc float64) float64 {
	return baseline + relaxivity*conc
}
