package kinetics

import (
	"errors"
	"fmt"
)

// Parameter-domain violations are reported through these sentinels.
var (
	// ErrInvalidVe indicates an extravascular-extracellular volume fraction
	// outside its physical domain.
	ErrInvalidVe = errors.New("kinetics: ve out of range")

	// ErrInvalidVc indicates a capillary volume fraction outside [0, 1].
	ErrInvalidVc = errors.New("kinetics: vc out of range")

	// ErrNegativeKtrans indicates a negative transfer constant.
	ErrNegativeKtrans = errors.New("kinetics: ktrans must be non-negative")
)

// Parameters holds the extended Tofts kinetic parameters estimated by the
// DCE fit. The same values are then held fixed through the DSC fit and the
// leakage correction; nothing downstream re-estimates them.
type Parameters struct {
	// Ktrans is the volume transfer constant in 1/s.
	Ktrans float64

	// Ve is the extravascular extracellular volume fraction, in (0, 1].
	Ve float64

	// Vc is the capillary (blood plasma) volume fraction, in [0, 1].
	Vc float64
}

// Kep returns the efflux rate constant Ktrans/Ve in 1/s.
func (p Parameters) Kep() float64 {
	return p.Ktrans / p.Ve
}

// Validate checks each parameter against its physical domain.
func (p Parameters) Validate() error {
	if p.Ktrans < 0 {
		return fmt.Errorf("%w: got %g", ErrNegativeKtrans, p.Ktrans)
	}
	if p.Ve <= 0 || p.Ve > 1 {
		return fmt.Errorf("%w: %g outside (0, 1]", ErrInvalidVe, p.Ve)
	}
	if p.Vc < 0 || p.Vc > 1 {
		return fmt.Errorf("%w: %g outside [0, 1]", ErrInvalidVc, p.Vc)
	}
	return nil
}
