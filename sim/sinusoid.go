package sim

import (
	"fmt"
	"math"
)

// Sinusoid is a closed-form supply curve oscillating between Min and Max.
//
//	value(t) = max(0, A·sin(2π·t/Period + PhaseShift) + offset)
//	A = (Max-Min)/2, offset = (Max+Min)/2
//
// t and Period share the simulation time unit (milliseconds).
// A constant supply is a Sinusoid with Min == Max.
type Sinusoid struct {
	Min        float64
	Max        float64
	Period     float64
	PhaseShift float64
}

// ConstantSupply returns a flat curve at power watts.
func ConstantSupply(power float64) Sinusoid {
	return Sinusoid{Min: power, Max: power, Period: 1}
}

// Validate checks that the curve parameters are usable.
func (s Sinusoid) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || s.Max < s.Min {
		return fmt.Errorf("sinusoid max (%f) must be >= min (%f)", s.Max, s.Min)
	}
	if math.IsNaN(s.Period) || math.IsInf(s.Period, 0) || s.Period <= 0 {
		return fmt.Errorf("sinusoid period must be a positive finite number, got %f", s.Period)
	}
	return nil
}

// Flat reports whether ValueAt returns the same value for every t.
func (s Sinusoid) Flat() bool {
	return s.Min == s.Max || s.Max <= 0
}

func (s Sinusoid) amplitude() float64 { return (s.Max - s.Min) / 2 }
func (s Sinusoid) offset() float64 { return (s.Max + s.Min) / 2 }

// ValueAt returns the supply at time t, never negative.
func (s Sinusoid) ValueAt(t int64) float64 {
	angle := 2*math.Pi*float64(t)/s.Period + s.PhaseShift
	return math.Max(0, s.amplitude()*math.Sin(angle)+s.offset())
}
