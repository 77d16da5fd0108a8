// Package nlsfit implements the bounded nonlinear least-squares solver shared
// by the DCE and DSC stages: Levenberg-Marquardt iteration with Marquardt
// diagonal scaling, a finite-difference Jacobian, and candidate steps clipped
// into a rectangular parameter box so iterates never leave their bounds.
package nlsfit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Invalid solver inputs are reported through these sentinels.
var (
	// ErrEmptyData indicates an empty measured curve.
	ErrEmptyData = errors.New("nlsfit: measured curve is empty")

	// ErrDimensionMismatch indicates bounds or initial guess of inconsistent length.
	ErrDimensionMismatch = errors.New("nlsfit: parameter vector lengths differ")

	// ErrBounds indicates a lower bound above its upper bound.
	ErrBounds = errors.New("nlsfit: lower bound exceeds upper bound")

	// ErrModelLength indicates a model output of the wrong length.
	ErrModelLength = errors.New("nlsfit: model output length differs from measured curve")
)

// Model maps a parameter vector to a predicted curve. Forward models bind
// their fixed inputs (time grid, arterial curve, protocol scalars) by closure
// and expose only the free parameters here. Each call must return a slice the
// solver may retain, always of the same length.
type Model func(params []float64) []float64

// Options controls the iteration and stopping behaviour of Fit. Zero fields
// fall back to the values from DefaultOptions.
type Options struct {
	// MaxIterations caps the number of outer Levenberg-Marquardt iterations.
	MaxIterations int

	// ParamTolerance stops the iteration once an accepted step moves every
	// parameter by less than ParamTolerance*(1+|p|).
	ParamTolerance float64

	// ResidualTolerance stops the iteration once an accepted step improves
	// the sum of squares by less than ResidualTolerance relative.
	ResidualTolerance float64

	// InitialDamping is the starting Levenberg-Marquardt damping factor.
	InitialDamping float64
}

// DefaultOptions returns the solver settings used by the estimation pipeline.
func DefaultOptions() Options {
	return Options{
		MaxIterations:     200,
		ParamTolerance:    1e-10,
		ResidualTolerance: 1e-12,
		InitialDamping:    1e-3,
	}
}

// withDefaults replaces unset fields by their defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.ParamTolerance <= 0 {
		o.ParamTolerance = d.ParamTolerance
	}
	if o.ResidualTolerance <= 0 {
		o.ResidualTolerance = d.ResidualTolerance
	}
	if o.InitialDamping <= 0 {
		o.InitialDamping = d.InitialDamping
	}
	return o
}

// Result holds the best iterate found by Fit together with its goodness of
// fit. The best iterate is returned whether or not the iteration converged;
// Converged=false only means the iteration cap was reached first.
type Result struct {
	// Params is the fitted parameter vector, always inside the bounds.
	Params []float64

	// Predicted is the model curve at Params.
	Predicted []float64

	// SumSquares is the residual sum of squares at Params.
	SumSquares float64

	// RMSE is the root mean square error at Params.
	RMSE float64

	// RSquared is the coefficient of determination of Predicted against the
	// measured curve.
	RSquared float64

	// Iterations is the number of outer iterations performed.
	Iterations int

	// Converged reports whether a stopping tolerance was met before the
	// iteration cap.
	Converged bool
}

// Damping schedule: grow by 10 on a rejected step, shrink by 10 on an
// accepted one, within fixed guards.
const (
	dampingGrow   = 10.0
	dampingShrink = 0.1
	minDamping    = 1e-12
	maxDamping    = 1e12
)

// fdStep is the relative finite-difference step, sqrt of the float64 machine
// epsilon.
var fdStep = math.Sqrt(2.220446049250313e-16)

// Fit minimizes the sum of squared differences between model(params) and
// measured over the box [lower, upper], starting from initial (clipped into
// the box if necessary).
//
// Each iteration builds a forward-difference Jacobian of the residuals, forms
// the normal equations with Marquardt diagonal scaling
// (H + damping*diag(H))*step = -g, solves them by Cholesky factorization, and
// clips the trial point into the box. Steps that do not reduce the sum of
// squares escalate the damping and retry; accepted steps relax it. The
// iteration stops on the residual-improvement tolerance, the parameter-step
// tolerance, a stall (no acceptable step at any damping), or MaxIterations,
// whichever comes first. Only the iteration cap reports Converged=false.
//
// Iterations are strictly sequential; Fit never calls the model concurrently.
func Fit(model Model, measured, lower, upper, initial []float64, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	n := len(measured)
	if n == 0 {
		return nil, ErrEmptyData
	}
	m := len(initial)
	if m == 0 {
		return nil, fmt.Errorf("%w: empty initial guess", ErrDimensionMismatch)
	}
	if len(lower) != m || len(upper) != m {
		return nil, fmt.Errorf("%w: %d initial, %d lower, %d upper",
			ErrDimensionMismatch, m, len(lower), len(upper))
	}
	for j := 0; j < m; j++ {
		if lower[j] > upper[j] {
			return nil, fmt.Errorf("%w: parameter %d has lower %g > upper %g",
				ErrBounds, j, lower[j], upper[j])
		}
	}

	params := make([]float64, m)
	for j := range params {
		params[j] = clamp(initial[j], lower[j], upper[j])
	}

	predicted := model(params)
	if len(predicted) != n {
		return nil, fmt.Errorf("%w: model produced %d samples for %d measurements",
			ErrModelLength, len(predicted), n)
	}
	resid := residuals(predicted, measured)
	ss := floats.Dot(resid, resid)

	damping := opts.InitialDamping
	jac := mat.NewDense(n, m, nil)
	hess := mat.NewSymDense(m, nil)
	grad := mat.NewVecDense(m, nil)
	negGrad := mat.NewVecDense(m, nil)
	step := mat.NewVecDense(m, nil)
	probe := make([]float64, m)
	cand := make([]float64, m)

	iterations := 0
	converged := false

	for it := 0; it < opts.MaxIterations; it++ {
		iterations = it + 1

		// Forward-difference Jacobian of the residual vector. The probe step
		// scales with the parameter magnitude, floored at 1% of the box
		// width, and flips direction when it would cross the upper bound.
		// A degenerate box (lower == upper) pins its parameter.
		for j := 0; j < m; j++ {
			width := upper[j] - lower[j]
			if width == 0 {
				for i := 0; i < n; i++ {
					jac.Set(i, j, 0)
				}
				continue
			}
			scale := math.Max(math.Abs(params[j]), 0.01*width)
			h := fdStep * scale
			if params[j]+h > upper[j] {
				h = -h
			}
			copy(probe, params)
			probe[j] += h
			probePred := model(probe)
			for i := 0; i < n; i++ {
				jac.Set(i, j, (probePred[i]-measured[i]-resid[i])/h)
			}
		}

		// Normal equations: H = J'J, g = J'r
		hess.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(n, resid))
		negGrad.ScaleVec(-1, grad)

		improved := false
		for damping <= maxDamping {
			// Marquardt scaling: damp each diagonal entry in proportion to
			// itself, substituting 1 for non-positive entries
			damped := mat.NewSymDense(m, nil)
			damped.CopySym(hess)
			for a := 0; a < m; a++ {
				d := hess.At(a, a)
				if d <= 0 {
					d = 1
				}
				damped.SetSym(a, a, hess.At(a, a)+damping*d)
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(damped); !ok {
				damping *= dampingGrow
				continue
			}
			if err := chol.SolveVecTo(step, negGrad); err != nil {
				damping *= dampingGrow
				continue
			}

			for a := 0; a < m; a++ {
				cand[a] = clamp(params[a]+step.AtVec(a), lower[a], upper[a])
			}
			candPred := model(cand)
			candResid := residuals(candPred, measured)
			candSS := floats.Dot(candResid, candResid)

			if candSS < ss {
				stepSize := 0.0
				paramScale := 0.0
				for a := 0; a < m; a++ {
					stepSize = math.Max(stepSize, math.Abs(cand[a]-params[a]))
					paramScale = math.Max(paramScale, math.Abs(params[a]))
				}
				improvement := ss - candSS

				copy(params, cand)
				resid = candResid
				predicted = candPred
				ss = candSS
				damping = math.Max(damping*dampingShrink, minDamping)
				improved = true

				if improvement <= opts.ResidualTolerance*(ss+opts.ResidualTolerance) {
					converged = true
				}
				if stepSize <= opts.ParamTolerance*(1+paramScale) {
					converged = true
				}
				break
			}
			damping *= dampingGrow
		}

		if !improved {
			// No damping level produced an acceptable step: the iterate has
			// stalled, which counts as a zero-step convergence
			converged = true
			break
		}
		if converged {
			break
		}
	}

	return &Result{
		Params:     params,
		Predicted:  predicted,
		SumSquares: ss,
		RMSE:       math.Sqrt(ss / float64(n)),
		RSquared:   stat.RSquaredFrom(predicted, measured, nil),
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// residuals returns predicted-measured as a fresh slice.
func residuals(predicted, measured []float64) []float64 {
	r := make([]float64, len(measured))
	for i := range r {
		r[i] = predicted[i] - measured[i]
	}
	return r
}

// clamp projects v onto [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
