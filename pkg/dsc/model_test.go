package dsc

import (
	"errors"
	"math"
	"testing"

	"github.com/Chih-Hsein/Leakage-correction/internal/dataset"
	"github.com/Chih-Hsein/Leakage-correction/pkg/kinetics"
	"github.com/Chih-Hsein/Leakage-correction/pkg/nlsfit"
	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// TestTailMeanWindows verifies the window start for short and regular curves
func TestTailMeanWindows(t *testing.T) {
	tests := []struct {
		length int
		want   float64
	}{
		{length: 1, want: 0},   // window [0:]
		{length: 2, want: 1},   // window [1:]
		{length: 3, want: 2},   // window [2:]
		{length: 4, want: 3},   // window [3:]
		{length: 5, want: 3.5}, // window [3:]
		{length: 8, want: 6.5}, // window [6:]
	}

	for _, tt := range tests {
		values := make([]float64, tt.length)
		for i := range values {
			values[i] = float64(i)
		}
		if got := TailMean(values); got != tt.want {
			t.Errorf("Length %d: expected tail mean %g, got %g", tt.length, tt.want, got)
		}
	}
}

// TestModelBaselineOnes verifies the ratio is exactly one with no contrast
// anywhere
func TestModelBaselineOnes(t *testing.T) {
	n := 20
	times := dataset.Times(n)
	plasma := make([]float64, n)
	leaked := make([]float64, n)
	p := Parameters{T10Tissue: 1.1, R2Tissue: 44}

	out, err := Model(p, referenceKinetics(), referenceProtocol(), plasma, times, leaked)
	if err != nil {
		t.Fatalf("Model failed: %v", err)
	}
	for i, v := range out {
		if v != 1.0 {
			t.Errorf("Expected ratio exactly 1 at sample %d, got %g", i, v)
		}
	}
}

// TestModelSusceptibilityDip verifies the predicted curve starts at the
// baseline and dips below it during bolus passage
func TestModelSusceptibilityDip(t *testing.T) {
	plasma, times := referenceGrid()
	kin := referenceKinetics()
	leaked, err := kinetics.Concentration(kin.Ktrans, kin.Ve, plasma, times)
	if err != nil {
		t.Fatalf("Concentration failed: %v", err)
	}

	out, err := Model(Parameters{T10Tissue: 1.1, R2Tissue: 44}, kin,
		referenceProtocol(), plasma, times, leaked)
	if err != nil {
		t.Fatalf("Model failed: %v", err)
	}

	// Before bolus arrival both compartments sit at their baseline rates,
	// so the ratio is exactly one even though the baseline itself carries
	// residual contrast
	for i := 0; i <= 10; i++ {
		if out[i] != 1.0 {
			t.Errorf("Expected unit baseline at sample %d, got %g", i, out[i])
		}
	}

	dip := math.Inf(1)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Non-finite ratio at sample %d", i)
		}
		if v <= 0 {
			t.Fatalf("Non-positive ratio %g at sample %d", v, i)
		}
		if v < dip {
			dip = v
		}
	}
	if dip > 0.85 {
		t.Errorf("Expected a clear susceptibility dip below 0.85, minimum %g", dip)
	}
}

// TestModelValidation verifies shape and parameter-domain rejection
func TestModelValidation(t *testing.T) {
	times := dataset.Times(10)
	plasma := make([]float64, 10)
	leaked := make([]float64, 10)
	p := Parameters{T10Tissue: 1.1, R2Tissue: 44}

	if _, err := Model(p, referenceKinetics(), referenceProtocol(), plasma[:5], times, leaked); !errors.Is(err, timeseries.ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch for short plasma curve, got %v", err)
	}
	if _, err := Model(p, referenceKinetics(), referenceProtocol(), plasma, times, leaked[:5]); !errors.Is(err, timeseries.ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch for short leaked curve, got %v", err)
	}
	bad := referenceKinetics()
	bad.Ve = 0
	if _, err := Model(p, bad, referenceProtocol(), plasma, times, leaked); !errors.Is(err, kinetics.ErrInvalidVe) {
		t.Errorf("Expected ErrInvalidVe, got %v", err)
	}
}

// TestFitClosedLoop verifies noiseless parameter recovery through the full
// model-fit round trip
func TestFitClosedLoop(t *testing.T) {
	plasma, times := referenceGrid()
	kin := referenceKinetics()
	leaked, err := kinetics.Concentration(kin.Ktrans, kin.Ve, plasma, times)
	if err != nil {
		t.Fatalf("Concentration failed: %v", err)
	}

	truth := Parameters{T10Tissue: 1.1, R2Tissue: 44}
	clean, err := Model(truth, kin, referenceProtocol(), plasma, times, leaked)
	if err != nil {
		t.Fatalf("Model failed: %v", err)
	}

	fitted, res, err := Fit(clean, plasma, times, kin, referenceProtocol(), nlsfit.Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !res.Converged {
		t.Error("Expected convergence on noiseless data")
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"t10Tissue", fitted.T10Tissue, truth.T10Tissue},
		{"r2Tissue", fitted.R2Tissue, truth.R2Tissue},
	}
	for _, c := range checks {
		relErr := math.Abs(c.got-c.want) / c.want
		if relErr > 1e-3 {
			t.Errorf("%s: expected %g, got %g (rel err %.3e)", c.name, c.want, c.got, relErr)
		}
	}
}

// TestFitReferenceData runs the fit end to end on the embedded measured curve
func TestFitReferenceData(t *testing.T) {
	plasma, times := referenceGrid()
	measured := dataset.DSCRatio()

	fitted, res, err := Fit(measured, plasma, times, referenceKinetics(), referenceProtocol(), nlsfit.Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !res.Converged {
		t.Error("Expected the reference fit to converge")
	}
	if fitted.T10Tissue < 0.9 || fitted.T10Tissue > 1.3 {
		t.Errorf("t10Tissue %g far from the reference value 1.1", fitted.T10Tissue)
	}
	if fitted.R2Tissue < 38 || fitted.R2Tissue > 50 {
		t.Errorf("r2Tissue %g far from the reference value 44", fitted.R2Tissue)
	}
	if len(res.Predicted) != len(measured) {
		t.Errorf("Expected %d predicted samples, got %d", len(measured), len(res.Predicted))
	}
	for i, v := range res.Predicted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Non-finite prediction at sample %d", i)
		}
	}
	if res.RSquared < 0.99 {
		t.Errorf("Expected R^2 above 0.99 on reference data, got %g", res.RSquared)
	}
}

// TestFitRejectsInvalidKinetics verifies the carried-over kinetic parameters
// are validated before the search starts
func TestFitRejectsInvalidKinetics(t *testing.T) {
	plasma, times := referenceGrid()
	measured := dataset.DSCRatio()

	tests := []struct {
		name    string
		mutate  func(*kinetics.Parameters)
		wantErr error
	}{
		{
			name:    "zero ve",
			mutate:  func(p *kinetics.Parameters) { p.Ve = 0 },
			wantErr: kinetics.ErrInvalidVe,
		},
		{
			name:    "negative vc",
			mutate:  func(p *kinetics.Parameters) { p.Vc = -0.1 },
			wantErr: kinetics.ErrInvalidVc,
		},
		{
			name:    "negative ktrans",
			mutate:  func(p *kinetics.Parameters) { p.Ktrans = -1 },
			wantErr: kinetics.ErrNegativeKtrans,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kin := referenceKinetics()
			tt.mutate(&kin)
			if _, _, err := Fit(measured, plasma, times, kin, referenceProtocol(), nlsfit.Options{}); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestFitShapeMismatch verifies curve-length validation
func TestFitShapeMismatch(t *testing.T) {
	plasma, times := referenceGrid()

	if _, _, err := Fit(dataset.DSCRatio()[:40], plasma, times, referenceKinetics(), referenceProtocol(), nlsfit.Options{}); !errors.Is(err, timeseries.ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch, got %v", err)
	}
}

// Helper functions for tests

func referenceProtocol() Protocol {
	return NewProtocol(dataset.DSCTR, dataset.DSCTE, dataset.DSCFlipAngleDeg,
		dataset.ContrastR1, dataset.ContrastR2Blood, dataset.Hematocrit)
}

func referenceKinetics() kinetics.Parameters {
	return kinetics.Parameters{Ktrans: 0.003, Vc: 0.04, Ve: 0.22}
}

func referenceGrid() (plasma, times []float64) {
	n := len(dataset.DSCRatio())
	return dataset.AIF()[:n], dataset.Times(n)
}
