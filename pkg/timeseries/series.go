// Package timeseries provides the sampled-curve value type shared by every
// stage of the estimation pipeline, together with the shape validation rules
// all curve inputs must satisfy: equal lengths, at least one sample, and a
// strictly increasing time grid.
package timeseries

import (
	"errors"
	"fmt"
)

// Shape violations are reported through these sentinels so callers can
// classify failures with errors.Is regardless of which stage raised them.
var (
	// ErrEmpty indicates a curve with no samples.
	ErrEmpty = errors.New("timeseries: series is empty")

	// ErrLengthMismatch indicates paired slices of different lengths.
	ErrLengthMismatch = errors.New("timeseries: times and values differ in length")

	// ErrNonIncreasing indicates a time grid that is not strictly increasing.
	ErrNonIncreasing = errors.New("timeseries: times must be strictly increasing")
)

// Series is a curve sampled on an explicit time grid: Values[i] was observed
// at Times[i] seconds. A Series built through New always satisfies the shape
// invariants; the slices are shared, not copied, so callers should treat a
// Series as immutable once constructed.
type Series struct {
	// Times holds the sample instants in seconds.
	Times []float64

	// Values holds the measured quantity at each instant.
	Values []float64
}

// New validates the given grid and samples and wraps them in a Series.
func New(times, values []float64) (Series, error) {
	if err := Validate(times, values); err != nil {
		return Series{}, err
	}
	return Series{Times: times, Values: values}, nil
}

// Validate checks the shape invariants for a times/values pair: both slices
// non-empty, equal in length, and times strictly increasing. It is exported
// so that packages taking raw slices can enforce the same rules.
func Validate(times, values []float64) error {
	if len(times) == 0 {
		return ErrEmpty
	}
	if len(times) != len(values) {
		return fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("%w: times[%d]=%g does not follow times[%d]=%g",
				ErrNonIncreasing, i, times[i], i-1, times[i-1])
		}
	}
	return nil
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Times)
}

// Truncate returns the prefix of the first n samples. The returned Series
// shares backing arrays with the receiver. Alignment between acquisitions
// with different durations is done by truncation only; nothing in the
// pipeline ever resamples a curve.
func (s Series) Truncate(n int) (Series, error) {
	if n < 1 {
		return Series{}, fmt.Errorf("%w: truncation to %d samples", ErrEmpty, n)
	}
	if n > s.Len() {
		return Series{}, fmt.Errorf("%w: cannot truncate %d samples to %d", ErrLengthMismatch, s.Len(), n)
	}
	return Series{Times: s.Times[:n], Values: s.Values[:n]}, nil
}
