// Package estimation orchestrates the leakage-correction pipeline: the DCE
// kinetic fit, the concentration kernel on the DSC grid, the DSC relaxometry
// fit, and the final correction of the DSC rate-change curve. Each stage
// consumes only the outputs of the stages before it; the estimator owns the
// sequencing, the grid alignment between acquisitions, and the stage logging.
package estimation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Chih-Hsein/Leakage-correction/pkg/correction"
	"github.com/Chih-Hsein/Leakage-correction/pkg/dce"
	"github.com/Chih-Hsein/Leakage-correction/pkg/dsc"
	"github.com/Chih-Hsein/Leakage-correction/pkg/kinetics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/nlsfit"
	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// Results holds everything the pipeline produces, in the order the stages
// produced it.
type Results struct {
	// Kinetics holds the extended Tofts parameters from the DCE stage. The
	// later stages consume these unchanged, so they describe both the fit
	// and the leakage model used for the correction.
	Kinetics kinetics.Parameters

	// Relaxometry holds the pre-bolus tissue T1 and the tissue transverse
	// relaxivity from the DSC stage.
	Relaxometry dsc.Parameters

	// DCEFit is the full solver result of the kinetic fit, including the
	// predicted curve for overlay plotting and the goodness of fit.
	DCEFit *nlsfit.Result

	// DSCFit is the full solver result of the relaxometry fit.
	DSCFit *nlsfit.Result

	// LeakedConcentration is the tissue concentration of tracer leaked
	// during the first injection, evaluated on the DSC time grid with the
	// fitted kinetic parameters. This is the curve the correction removes.
	LeakedConcentration timeseries.Series

	// Correction is the decomposition of the corrected rate-change curve:
	// measured, T1 term, T2* term, and corrected, all on the DSC grid.
	Correction correction.Curves
}

// Estimator runs the fitting stages and the correction in sequence. It is
// configured once with the acquisition protocols and solver options and can
// then process any number of curve triplets.
type Estimator struct {
	dceProto dce.Protocol
	dscProto dsc.Protocol
	opts     nlsfit.Options
	log      zerolog.Logger
}

// New returns an Estimator for the given protocols. The solver options apply
// to both fitting stages; zero fields fall back to the solver defaults.
func New(dceProto dce.Protocol, dscProto dsc.Protocol, opts nlsfit.Options, log zerolog.Logger) *Estimator {
	return &Estimator{
		dceProto: dceProto,
		dscProto: dscProto,
		opts:     opts,
		log:      log,
	}
}

// Run executes the full pipeline on one arterial input curve and the two
// measured signal-ratio curves. All three are assumed sampled on the arterial
// time grid; the DSC curve may be shorter, in which case the arterial series
// is truncated to its length before the second stage. Nothing is resampled.
//
// An unconverged fit is logged at warn level and the best iterate is carried
// forward; only shape and parameter-domain problems abort the run.
func (e *Estimator) Run(arterial, dceCurve, dscCurve timeseries.Series) (*Results, error) {
	if err := timeseries.Validate(arterial.Times, arterial.Values); err != nil {
		return nil, fmt.Errorf("arterial series: %w", err)
	}
	if err := timeseries.Validate(dceCurve.Times, dceCurve.Values); err != nil {
		return nil, fmt.Errorf("dce series: %w", err)
	}
	if err := timeseries.Validate(dscCurve.Times, dscCurve.Values); err != nil {
		return nil, fmt.Errorf("dsc series: %w", err)
	}
	if dceCurve.Len() != arterial.Len() {
		return nil, fmt.Errorf("%w: %d DCE samples for %d arterial samples",
			timeseries.ErrLengthMismatch, dceCurve.Len(), arterial.Len())
	}
	if dscCurve.Len() > arterial.Len() {
		return nil, fmt.Errorf("%w: %d DSC samples exceed the %d-sample arterial series",
			timeseries.ErrLengthMismatch, dscCurve.Len(), arterial.Len())
	}

	e.log.Info().Int("samples", arterial.Len()).Msg("Fitting DCE kinetic parameters")
	kin, dceRes, err := dce.Fit(dceCurve.Values, arterial.Values, arterial.Times, e.dceProto, e.opts)
	if err != nil {
		return nil, fmt.Errorf("dce fit: %w", err)
	}
	if !dceRes.Converged {
		e.log.Warn().Int("iterations", dceRes.Iterations).
			Msg("DCE fit hit the iteration cap, keeping the best iterate")
	}
	e.log.Info().
		Float64("ktrans", kin.Ktrans).
		Float64("vc", kin.Vc).
		Float64("ve", kin.Ve).
		Float64("rSquared", dceRes.RSquared).
		Int("iterations", dceRes.Iterations).
		Msg("DCE stage complete")

	short, err := arterial.Truncate(dscCurve.Len())
	if err != nil {
		return nil, fmt.Errorf("aligning arterial series to the DSC grid: %w", err)
	}

	leaked, err := kinetics.Concentration(kin.Ktrans, kin.Ve, short.Values, short.Times)
	if err != nil {
		return nil, fmt.Errorf("leaked concentration on the DSC grid: %w", err)
	}

	e.log.Info().Int("samples", short.Len()).Msg("Fitting DSC relaxometry parameters")
	relax, dscRes, err := dsc.Fit(dscCurve.Values, short.Values, short.Times, kin, e.dscProto, e.opts)
	if err != nil {
		return nil, fmt.Errorf("dsc fit: %w", err)
	}
	if !dscRes.Converged {
		e.log.Warn().Int("iterations", dscRes.Iterations).
			Msg("DSC fit hit the iteration cap, keeping the best iterate")
	}
	e.log.Info().
		Float64("t10Tissue", relax.T10Tissue).
		Float64("r2Tissue", relax.R2Tissue).
		Float64("rSquared", dscRes.RSquared).
		Int("iterations", dscRes.Iterations).
		Msg("DSC stage complete")

	curves, err := correction.Correct(dscCurve.Values, leaked, correction.Params{
		TE:        e.dscProto.TE,
		TR:        e.dscProto.TR,
		T10Tissue: relax.T10Tissue,
		R2Tissue:  relax.R2Tissue,
		R1:        e.dscProto.R1,
	})
	if err != nil {
		return nil, fmt.Errorf("leakage correction: %w", err)
	}
	e.log.Info().Int("samples", len(curves.Corrected)).Msg("Leakage correction complete")

	return &Results{
		Kinetics:            kin,
		Relaxometry:         relax,
		DCEFit:              dceRes,
		DSCFit:              dscRes,
		LeakedConcentration: timeseries.Series{Times: short.Times, Values: leaked},
		Correction:          curves,
	}, nil
}
