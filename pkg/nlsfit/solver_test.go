package nlsfit

import (
	"errors"
	"math"
	"testing"
)

// expDecay builds a two-parameter test model y = a*exp(-b*t) over a fixed grid
func expDecay(times []float64) Model {
	return func(p []float64) []float64 {
		out := make([]float64, len(times))
		for i, t := range times {
			out[i] = p[0] * math.Exp(-p[1]*t)
		}
		return out
	}
}

func decayGrid() []float64 {
	times := make([]float64, 41)
	for i := range times {
		times[i] = 0.5 * float64(i)
	}
	return times
}

// sumSquares evaluates the objective directly for comparison with Result
func sumSquares(model Model, measured, params []float64) float64 {
	pred := model(params)
	ss := 0.0
	for i := range pred {
		d := pred[i] - measured[i]
		ss += d * d
	}
	return ss
}

// TestFitRecoversExponential verifies closed-loop recovery on noiseless data
func TestFitRecoversExponential(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	truth := []float64{2.0, 0.5}
	measured := model(truth)

	res, err := Fit(model, measured, []float64{0, 0}, []float64{10, 5}, []float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !res.Converged {
		t.Error("Expected convergence on noiseless data")
	}
	for j, want := range truth {
		relErr := math.Abs(res.Params[j]-want) / want
		if relErr > 1e-6 {
			t.Errorf("Parameter %d: expected %g, got %g (rel err %.3e)", j, want, res.Params[j], relErr)
		}
	}
	if res.Iterations < 1 {
		t.Errorf("Expected at least one iteration, got %d", res.Iterations)
	}
	if res.RMSE < 0 || res.SumSquares < 0 {
		t.Errorf("Negative goodness-of-fit values: RMSE=%g SS=%g", res.RMSE, res.SumSquares)
	}
}

// TestFitRespectsBounds verifies that iterates stay inside a box that
// excludes the true parameters
func TestFitRespectsBounds(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})

	// The decay-rate bound 0.3 is below the true 0.5
	lower := []float64{0, 0}
	upper := []float64{10, 0.3}
	initial := []float64{1, 0.1}

	res, err := Fit(model, measured, lower, upper, initial, Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for j := range res.Params {
		if res.Params[j] < lower[j] || res.Params[j] > upper[j] {
			t.Errorf("Parameter %d = %g escaped [%g, %g]", j, res.Params[j], lower[j], upper[j])
		}
	}

	// The constrained optimum sits on the excluded bound
	if math.Abs(res.Params[1]-0.3) > 1e-9 {
		t.Errorf("Expected decay rate pinned at bound 0.3, got %g", res.Params[1])
	}

	ssInitial := sumSquares(model, measured, initial)
	if res.SumSquares > ssInitial {
		t.Errorf("Objective worsened: %g > %g at initial guess", res.SumSquares, ssInitial)
	}
}

// TestFitImprovesObjective verifies monotone improvement on perturbed data
func TestFitImprovesObjective(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	clean := model([]float64{2.0, 0.5})

	measured := make([]float64, len(clean))
	for i, v := range clean {
		measured[i] = v * (1 + 0.01*math.Sin(7.3*float64(i)))
	}

	initial := []float64{1, 1}
	res, err := Fit(model, measured, []float64{0, 0}, []float64{10, 5}, initial, Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !res.Converged {
		t.Error("Expected convergence on perturbed data")
	}
	ssInitial := sumSquares(model, measured, initial)
	if res.SumSquares > ssInitial {
		t.Errorf("Objective worsened: %g > %g at initial guess", res.SumSquares, ssInitial)
	}
	if res.RSquared < 0.99 {
		t.Errorf("Expected R^2 above 0.99, got %g", res.RSquared)
	}

	// RMSE must be consistent with the sum of squares
	wantRMSE := math.Sqrt(res.SumSquares / float64(len(measured)))
	if math.Abs(res.RMSE-wantRMSE) > 1e-15 {
		t.Errorf("RMSE %g inconsistent with SS %g", res.RMSE, res.SumSquares)
	}
}

// TestFitPinnedParameter verifies a degenerate box dimension (lower == upper)
func TestFitPinnedParameter(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})

	res, err := Fit(model, measured, []float64{0, 0.5}, []float64{10, 0.5}, []float64{1, 0.5}, Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if res.Params[1] != 0.5 {
		t.Errorf("Pinned parameter moved: got %g", res.Params[1])
	}
	if math.Abs(res.Params[0]-2.0) > 1e-6 {
		t.Errorf("Expected amplitude 2.0 with pinned rate, got %g", res.Params[0])
	}
	if !res.Converged {
		t.Error("Expected convergence with pinned parameter")
	}
}

// TestFitIterationCap verifies the best iterate is returned unconverged when
// the cap is hit first
func TestFitIterationCap(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})
	initial := []float64{9, 4}

	res, err := Fit(model, measured, []float64{0, 0}, []float64{10, 5}, initial, Options{MaxIterations: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if res.Converged {
		t.Error("Expected Converged=false at the iteration cap")
	}
	if res.Iterations != 1 {
		t.Errorf("Expected exactly 1 iteration, got %d", res.Iterations)
	}
	ssInitial := sumSquares(model, measured, initial)
	if res.SumSquares > ssInitial {
		t.Errorf("Best iterate worse than start: %g > %g", res.SumSquares, ssInitial)
	}
	if len(res.Params) != 2 || len(res.Predicted) != len(measured) {
		t.Error("Best iterate missing from capped result")
	}
}

// TestFitStartsOutsideBox verifies the initial guess is clipped, not rejected
func TestFitStartsOutsideBox(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})

	res, err := Fit(model, measured, []float64{0, 0}, []float64{10, 5}, []float64{50, -3}, Options{})
	if err != nil {
		t.Fatalf("Fit failed for out-of-box start: %v", err)
	}
	for j, b := range [][2]float64{{0, 10}, {0, 5}} {
		if res.Params[j] < b[0] || res.Params[j] > b[1] {
			t.Errorf("Parameter %d = %g escaped [%g, %g]", j, res.Params[j], b[0], b[1])
		}
	}
}

// TestFitValidation verifies pre-solve input rejection
func TestFitValidation(t *testing.T) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})

	testCases := []struct {
		name     string
		measured []float64
		lower    []float64
		upper    []float64
		initial  []float64
		wantErr  error
	}{
		{"empty measured", []float64{}, []float64{0, 0}, []float64{10, 5}, []float64{1, 1}, ErrEmptyData},
		{"empty initial", measured, []float64{0, 0}, []float64{10, 5}, []float64{}, ErrDimensionMismatch},
		{"short lower", measured, []float64{0}, []float64{10, 5}, []float64{1, 1}, ErrDimensionMismatch},
		{"short upper", measured, []float64{0, 0}, []float64{10}, []float64{1, 1}, ErrDimensionMismatch},
		{"inverted bounds", measured, []float64{0, 6}, []float64{10, 5}, []float64{1, 1}, ErrBounds},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Fit(model, tc.measured, tc.lower, tc.upper, tc.initial, Options{})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// A model whose output length disagrees with the measurements
	short := func(p []float64) []float64 { return []float64{p[0]} }
	if _, err := Fit(short, measured, []float64{0}, []float64{10}, []float64{1}, Options{}); !errors.Is(err, ErrModelLength) {
		t.Errorf("Expected ErrModelLength, got %v", err)
	}
}

// TestDefaultOptions verifies zero Options fall back to the documented defaults
func TestDefaultOptions(t *testing.T) {
	d := Options{}.withDefaults()
	want := DefaultOptions()
	if d != want {
		t.Errorf("Expected %+v, got %+v", want, d)
	}

	// Explicit settings survive
	o := Options{MaxIterations: 7}.withDefaults()
	if o.MaxIterations != 7 {
		t.Errorf("Explicit MaxIterations overwritten: %d", o.MaxIterations)
	}
	if o.ParamTolerance != want.ParamTolerance {
		t.Errorf("Unset tolerance not defaulted: %g", o.ParamTolerance)
	}
}

// BenchmarkFitExponential measures a full two-parameter fit
func BenchmarkFitExponential(b *testing.B) {
	times := decayGrid()
	model := expDecay(times)
	measured := model([]float64{2.0, 0.5})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Fit(model, measured, []float64{0, 0}, []float64{10, 5}, []float64{1, 1}, Options{}); err != nil {
			b.Fatalf("Fit failed: %v", err)
		}
	}
}
