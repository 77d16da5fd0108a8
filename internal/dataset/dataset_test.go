package dataset

import "testing"

// TestCurveLengths guards the embedded array sizes the pipeline assumes
func TestCurveLengths(t *testing.T) {
	if n := len(AIF()); n != 100 {
		t.Errorf("Expected 100 AIF samples, got %d", n)
	}
	if n := len(DCERatio()); n != 100 {
		t.Errorf("Expected 100 DCE samples, got %d", n)
	}
	if n := len(DSCRatio()); n != 80 {
		t.Errorf("Expected 80 DSC samples, got %d", n)
	}
}

// TestTimesGrid verifies the uniform acquisition grid
func TestTimesGrid(t *testing.T) {
	times := Times(100)
	if times[0] != 0 {
		t.Errorf("Grid must start at zero, got %g", times[0])
	}
	for i := 1; i < len(times); i++ {
		if times[i]-times[i-1] != TemporalResolution {
			t.Fatalf("Non-uniform step at %d: %g", i, times[i]-times[i-1])
		}
	}
}

// TestArterialBaseline verifies zero plasma concentration before the bolus
func TestArterialBaseline(t *testing.T) {
	aif := AIF()
	// Bolus arrival is 20 s = sample 10; everything up to and including it is baseline
	for i := 0; i <= 10; i++ {
		if aif[i] != 0 {
			t.Errorf("Expected zero baseline at sample %d, got %g", i, aif[i])
		}
	}
	if aif[11] <= 0 {
		t.Errorf("Expected bolus onset after sample 10, got %g", aif[11])
	}
}

// TestAccessorsCopy verifies callers cannot corrupt the embedded curves
func TestAccessorsCopy(t *testing.T) {
	a := AIF()
	a[0] = 99
	if AIF()[0] == 99 {
		t.Error("AIF returned shared backing storage")
	}
}
