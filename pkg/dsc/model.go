// Package dsc implements the dynamic susceptibility-contrast forward model
// and the relaxometry fit. The model predicts the DSC signal-ratio curve of a
// two-compartment voxel during a second contrast injection, including the T1
// and T2* effects of the tracer that leaked into tissue during the first
// injection; the fit inverts it for the pre-bolus tissue T1 and the tissue
// transverse relaxivity.
package dsc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Chih-Hsein/Leakage-correction/pkg/kinetics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/nlsfit"
	"github.com/Chih-Hsein/Leakage-correction/pkg/physics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// Protocol holds the DSC acquisition scalars. All times are seconds, the flip
// angle is stored in radians, relaxivities in 1/(s*mM).
type Protocol struct {
	// TR is the repetition time.
	TR float64

	// TE is the echo time.
	TE float64

	// FlipAngle is the excitation flip angle in radians.
	FlipAngle float64

	// R1 is the longitudinal relaxivity of the contrast agent.
	R1 float64

	// R2Blood is the effective transverse relaxivity in whole blood.
	R2Blood float64

	// Hct is the arterial hematocrit fraction, converting plasma to
	// whole-blood concentration.
	Hct float64
}

// NewProtocol builds a Protocol from a flip angle given in degrees.
func NewProtocol(tr, te, flipDeg, r1, r2Blood, hct float64) Protocol {
	return Protocol{
		TR:        tr,
		TE:        te,
		FlipAngle: flipDeg * math.Pi / 180.0,
		R1:        r1,
		R2Blood:   r2Blood,
		Hct:       hct,
	}
}

// Parameters are the relaxometry unknowns estimated from the DSC curve.
type Parameters struct {
	// T10Tissue is the tissue T1 immediately before the second bolus, in
	// seconds. It absorbs the longitudinal effect of the tracer already
	// resident in tissue, which is why it is fitted rather than assumed.
	T10Tissue float64

	// R2Tissue is the effective transverse relaxivity in tissue.
	R2Tissue float64
}

// Fit search box and starting point for the parameter vector
// (t10Tissue, r2Tissue).
var (
	fitLower   = []float64{0, 0}
	fitUpper   = []float64{5, 300}
	fitInitial = []float64{0.5, 30}
)

// TailMean returns the mean of the last quarter of the curve, the estimate of
// the steady-state plasma level left over from the first injection. The curve
// must not be empty.
func TailMean(values []float64) float64 {
	start := 3 * len(values) / 4
	if start >= len(values) {
		start = len(values) - 1
	}
	return stat.Mean(values[start:], nil)
}

// Model returns the predicted DSC signal-ratio curve for relaxometry
// parameters p, given the kinetic parameters estimated in the DCE stage and
// the leaked-contrast curve on the same grid as plasma.
//
// The pre-bolus baseline is not contrast free: blood still carries the
// steady-state plasma level from the first injection, taken as the tail mean
// of the plasma curve, and tissue relaxes at 1/T10Tissue. Each sample then
// adds the second bolus on top of that baseline, attenuated by the T2* decay
// of both compartments, and normalizes by the baseline signal.
func Model(p Parameters, kin kinetics.Parameters, proto Protocol, plasma, times, leaked []float64) ([]float64, error) {
	if err := timeseries.Validate(times, plasma); err != nil {
		return nil, err
	}
	if len(leaked) != len(plasma) {
		return nil, fmt.Errorf("%w: %d leaked samples on a %d-sample grid",
			timeseries.ErrLengthMismatch, len(leaked), len(plasma))
	}
	if err := kin.Validate(); err != nil {
		return nil, err
	}
	return model(p, kin.Vc, proto, plasma, leaked, TailMean(plasma)), nil
}

// model is the closure body shared with Fit. Inputs are pre-validated except
// that t10Tissue may sit on the zero bound while the solver probes the box;
// 1/0 drives the SPGR signal to its saturation limit and every sample stays
// finite.
func model(p Parameters, vc float64, proto Protocol, plasma, leaked []float64, cpTail float64) []float64 {
	// Residual tracer from the first injection sets the baseline rates
	cbTail := (1 - proto.Hct) * cpTail
	r1Blood0 := physics.Rate(1.0/physics.T10Blood, proto.R1, cbTail)
	r1Tissue0 := 1.0 / p.T10Tissue
	base := vc*physics.SPGR(r1Blood0, proto.TR, proto.FlipAngle) +
		(1-vc)*physics.SPGR(r1Tissue0, proto.TR, proto.FlipAngle)

	out := make([]float64, len(plasma))
	for i := range out {
		cb := (1 - proto.Hct) * plasma[i]
		r1Blood := physics.Rate(r1Blood0, proto.R1, cb)
		r1Tissue := physics.Rate(r1Tissue0, proto.R1, leaked[i])
		// The transverse rates carry only the bolus contribution; the
		// pre-bolus decay multiplies numerator and denominator alike and
		// cancels in the ratio
		r2Blood := proto.R2Blood * cb
		r2Tissue := p.R2Tissue * (leaked[i] + vc*cb)
		blood := vc * physics.SPGR(r1Blood, proto.TR, proto.FlipAngle) *
			physics.T2StarDecay(r2Blood, proto.TE)
		tissue := (1 - vc) * physics.SPGR(r1Tissue, proto.TR, proto.FlipAngle) *
			physics.T2StarDecay(r2Tissue, proto.TE)
		out[i] = (blood + tissue) / base
	}
	return out
}

// Fit estimates (t10Tissue, r2Tissue) from a measured DSC signal-ratio curve.
// The search runs inside the box t10Tissue in [0, 5] s, r2Tissue in
// [0, 300] 1/(s*mM), starting from (0.5, 30).
//
// The leaked-contrast curve is derived once from the DCE kinetic estimate and
// held fixed during the search. The fitted parameters are returned together
// with the full solver result; an unconverged fit is reported through
// Result.Converged, never as an error.
func Fit(measured, plasma, times []float64, kin kinetics.Parameters, proto Protocol, opts nlsfit.Options) (Parameters, *nlsfit.Result, error) {
	if err := timeseries.Validate(times, plasma); err != nil {
		return Parameters{}, nil, err
	}
	if len(measured) != len(times) {
		return Parameters{}, nil, fmt.Errorf("%w: %d measurements on a %d-sample grid",
			timeseries.ErrLengthMismatch, len(measured), len(times))
	}
	if err := kin.Validate(); err != nil {
		return Parameters{}, nil, err
	}

	leaked, err := kinetics.Concentration(kin.Ktrans, kin.Ve, plasma, times)
	if err != nil {
		return Parameters{}, nil, err
	}
	cpTail := TailMean(plasma)

	forward := func(params []float64) []float64 {
		return model(paramsFromVector(params), kin.Vc, proto, plasma, leaked, cpTail)
	}

	res, err := nlsfit.Fit(forward, measured, fitLower, fitUpper, fitInitial, opts)
	if err != nil {
		return Parameters{}, nil, err
	}
	return paramsFromVector(res.Params), res, nil
}

// paramsFromVector maps the solver's parameter vector onto the relaxometry set.
func paramsFromVector(v []float64) Parameters {
	return Parameters{T10Tissue: v[0], R2Tissue: v[1]}
}
