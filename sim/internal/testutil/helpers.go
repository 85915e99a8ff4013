// Package testutil provides shared test infrastructure for the power simulator.
// It consolidates fragment builders and assertion helpers used across
// sim/ and its sub-package tests.
package testutil

import (
	"math"
	"testing"

	"github.com/inference-sim/power-sim/sim"
)

// Fragments builds a contiguous fragment sequence from alternating
// timestamp/value pairs: Fragments(0, 100, 10, 50) has two fragments.
func Fragments(t *testing.T, pairs ...float64) []sim.Fragment {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatalf("Fragments: odd number of arguments (%d)", len(pairs))
	}
	samples := make([]sim.Sample, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		samples = append(samples, sim.Sample{Timestamp: int64(pairs[i]), Value: pairs[i+1]})
	}
	return sim.BuildFragments(samples)
}

// ConstantSupplier returns a function-backed supplier that always yields power.
func ConstantSupplier(kind sim.EnergyKind, power float64) *sim.Supplier {
	return sim.NewFunctionSupplier(kind, sim.ConstantSupply(power), nil, 0, 0)
}

// Battery returns a smooth battery or fails the test.
func Battery(t *testing.T, capacity, level, efficiency, maxRate float64) *sim.Battery {
	t.Helper()
	b, err := sim.NewBattery(sim.BatteryConfig{
		Kind:             sim.BatterySmooth,
		Capacity:         capacity,
		ChargeEfficiency: efficiency,
		MaxChargeRate:    maxRate,
		InitialLevel:     level,
	})
	if err != nil {
		t.Fatalf("Battery: %v", err)
	}
	return b
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
