// Package dce implements the dynamic contrast-enhanced forward model and the
// kinetic-parameter fit. The model predicts the DCE signal-ratio curve of a
// two-compartment voxel (capillary blood plus leaking tissue) from extended
// Tofts parameters; the fit inverts it by bounded nonlinear least squares.
package dce

import (
	"fmt"
	"math"

	"github.com/Chih-Hsein/Leakage-correction/pkg/kinetics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/nlsfit"
	"github.com/Chih-Hsein/Leakage-correction/pkg/physics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// Protocol holds the DCE acquisition scalars. All times are seconds, the flip
// angle is stored in radians, relaxivity in 1/(s*mM).
type Protocol struct {
	// TR is the repetition time.
	TR float64

	// FlipAngle is the excitation flip angle in radians.
	FlipAngle float64

	// T10Tissue is the measured pre-contrast tissue T1.
	T10Tissue float64

	// R1 is the longitudinal relaxivity of the contrast agent.
	R1 float64

	// Hct is the arterial hematocrit fraction, converting plasma to
	// whole-blood concentration.
	Hct float64
}

// NewProtocol builds a Protocol from a flip angle given in degrees.
func NewProtocol(tr, flipDeg, t10Tissue, r1, hct float64) Protocol {
	return Protocol{
		TR:        tr,
		FlipAngle: flipDeg * math.Pi / 180.0,
		T10Tissue: t10Tissue,
		R1:        r1,
		Hct:       hct,
	}
}

// Fit search box and starting point for the parameter vector
// (ktrans, vc, ve).
var (
	fitLower   = []float64{0, 0, 0}
	fitUpper   = []float64{0.01, 1, 1}
	fitInitial = []float64{0.001, 0.01, 0.01}
)

// Model returns the predicted DCE signal-ratio curve for kinetic parameters p
// given the arterial plasma curve on its time grid:
//
//	ratio(t) = [vc*S(R1b(t)) + (1-vc)*S(R1t(t))] / [vc*S(R1b0) + (1-vc)*S(R1t0)]
//
// where R1b(t) tracks the plasma concentration scaled to whole blood, R1t(t)
// tracks the leaked tissue concentration from the kinetics kernel, and the
// denominator evaluates both compartments at their pre-contrast rates. Before
// bolus arrival the ratio is exactly 1.
func Model(p kinetics.Parameters, proto Protocol, plasma, times []float64) ([]float64, error) {
	if err := timeseries.Validate(times, plasma); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return model(p, proto, plasma, times), nil
}

// model is the closure body shared with Fit. Inputs are pre-validated except
// that ve may sit on the zero bound while the solver probes the box; that
// limit means no extravasation, so the tissue curve stays flat.
func model(p kinetics.Parameters, proto Protocol, plasma, times []float64) []float64 {
	var tissue []float64
	if p.Ve <= 0 {
		tissue = make([]float64, len(times))
	} else {
		// ktrans >= 0 and ve > 0 here, and the grid is validated, so the
		// kernel cannot fail
		tissue, _ = kinetics.Concentration(p.Ktrans, p.Ve, plasma, times)
	}

	r1Blood0 := 1.0 / physics.T10Blood
	r1Tissue0 := 1.0 / proto.T10Tissue
	baseline := p.Vc*physics.SPGR(r1Blood0, proto.TR, proto.FlipAngle) +
		(1-p.Vc)*physics.SPGR(r1Tissue0, proto.TR, proto.FlipAngle)

	bloodGain := proto.R1 * (1 - proto.Hct)
	out := make([]float64, len(times))
	for i := range times {
		r1Blood := physics.Rate(r1Blood0, bloodGain, plasma[i])
		r1Tissue := physics.Rate(r1Tissue0, proto.R1, tissue[i])
		out[i] = (p.Vc*physics.SPGR(r1Blood, proto.TR, proto.FlipAngle) +
			(1-p.Vc)*physics.SPGR(r1Tissue, proto.TR, proto.FlipAngle)) / baseline
	}
	return out
}

// Fit estimates (ktrans, vc, ve) from a measured DCE signal-ratio curve.
// The search runs inside the physiological box ktrans in [0, 0.01] 1/s,
// vc in [0, 1], ve in [0, 1], starting from (0.001, 0.01, 0.01).
//
// The fitted parameters are returned together with the full solver result;
// an unconverged fit is reported through Result.Converged, never as an error.
func Fit(measured, plasma, times []float64, proto Protocol, opts nlsfit.Options) (kinetics.Parameters, *nlsfit.Result, error) {
	if err := timeseries.Validate(times, plasma); err != nil {
		return kinetics.Parameters{}, nil, err
	}
	if len(measured) != len(times) {
		return kinetics.Parameters{}, nil, fmt.Errorf("%w: %d measurements on a %d-sample grid",
			timeseries.ErrLengthMismatch, len(measured), len(times))
	}

	forward := func(params []float64) []float64 {
		return model(paramsFromVector(params), proto, plasma, times)
	}

	res, err := nlsfit.Fit(forward, measured, fitLower, fitUpper, fitInitial, opts)
	if err != nil {
		return kinetics.Parameters{}, nil, err
	}
	return paramsFromVector(res.Params), res, nil
}

// paramsFromVector maps the solver's parameter vector onto the kinetic set.
func paramsFromVector(v []float64) kinetics.Parameters {
	return kinetics.Parameters{Ktrans: v[0], Vc: v[1], Ve: v[2]}
}
