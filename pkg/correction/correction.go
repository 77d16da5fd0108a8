// Package correction removes contrast-agent leakage contamination from DSC
// curves. The measured signal ratio is converted into an apparent rate-change
// curve, then the longitudinal and transverse effects of tracer that leaked
// into tissue during an earlier injection are compensated, leaving the
// corrected rate change of the intravascular bolus alone.
package correction

import (
	"errors"
	"fmt"
	"math"

	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// ErrInvalidParams indicates a correction parameter outside its domain.
var ErrInvalidParams = errors.New("correction: parameter out of range")

// Params holds the scalars entering the correction formula. TE, TR and
// T10Tissue must be positive; R2Tissue and R1 come from the DSC fit and the
// contrast agent.
type Params struct {
	// TE is the echo time of the DSC sequence in seconds.
	TE float64

	// TR is the repetition time of the DSC sequence in seconds.
	TR float64

	// T10Tissue is the fitted pre-bolus tissue T1 in seconds.
	T10Tissue float64

	// R2Tissue is the fitted tissue transverse relaxivity in 1/(s*mM).
	R2Tissue float64

	// R1 is the longitudinal relaxivity of the contrast agent in 1/(s*mM).
	R1 float64
}

// Curves bundles the decomposition of the correction, all aligned with the
// DSC time grid.
type Curves struct {
	// Measured is the apparent rate change -ln(ratio)/TE.
	Measured []float64

	// T1Term is the rate change masked by T1 shortening from the leaked
	// tracer. T1 shortening raises the signal, so this term is added back.
	T1Term []float64

	// T2Term is the rate change contributed by the transverse relaxivity of
	// the leaked tracer, subtracted from the measured curve.
	T2Term []float64

	// Corrected is Measured + T1Term - T2Term, sample by sample.
	Corrected []float64
}

// Correct decomposes the measured DSC signal-ratio curve into the corrected
// rate change and its leakage terms, given the tissue concentration of tracer
// leaked during the first injection on the same grid:
//
//	measured(t)  = -ln(ratio(t)) / TE
//	t1Term(t)    = ln[(1 - e10*exp(-TR*r1*leaked(t))) / (1 - e10)] / TE
//	t2Term(t)    = r2Tissue * leaked(t)
//	corrected(t) = measured(t) + t1Term(t) - t2Term(t)
//
// with e10 = exp(-TR/T10Tissue). The ordering and signs follow the published
// correction and a unit ratio with zero leaked concentration maps to zero in
// every output curve. Ratio samples must be positive; non-positive samples
// propagate as non-finite values rather than errors.
func Correct(ratio, leaked []float64, p Params) (Curves, error) {
	if len(ratio) == 0 {
		return Curves{}, fmt.Errorf("%w: ratio curve", timeseries.ErrEmpty)
	}
	if len(leaked) != len(ratio) {
		return Curves{}, fmt.Errorf("%w: %d leaked samples for %d ratio samples",
			timeseries.ErrLengthMismatch, len(leaked), len(ratio))
	}
	if p.TE <= 0 || p.TR <= 0 || p.T10Tissue <= 0 {
		return Curves{}, fmt.Errorf("%w: TE %g, TR %g, T10Tissue %g must all be positive",
			ErrInvalidParams, p.TE, p.TR, p.T10Tissue)
	}

	e10 := math.Exp(-p.TR / p.T10Tissue)
	c := Curves{
		Measured:  make([]float64, len(ratio)),
		T1Term:    make([]float64, len(ratio)),
		T2Term:    make([]float64, len(ratio)),
		Corrected: make([]float64, len(ratio)),
	}
	for i := range ratio {
		measured := -math.Log(ratio[i]) / p.TE
		a := (1 - e10*math.Exp(-p.TR*p.R1*leaked[i])) / (1 - e10)
		t1 := math.Log(a) / p.TE
		t2 := p.R2Tissue * leaked[i]

		c.Measured[i] = measured
		c.T1Term[i] = t1
		c.T2Term[i] = t2
		c.Corrected[i] = measured + t1 - t2
	}
	return c, nil
}
