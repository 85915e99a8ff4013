package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceSupplier_SameFragmentReturnsUnchangedZero(t *testing.T) {
	// GIVEN an energy trace of 100W from t=0 and 40W from t=10
	energy := BuildFragments([]Sample{{0, 100}, {10, 40}})
	s := NewTraceSupplier(EnergyClean, energy, nil, 0)

	// WHEN the first query lands in fragment 0
	r := s.Supply(1)
	// THEN the fragment value is reported
	assert.True(t, r.Changed)
	assert.InDelta(t, 100, r.Power, 1e-9)

	// WHEN a second query lands in the same fragment
	r = s.Supply(5)
	// THEN Power is 0 and Changed is false: this zero means "unchanged,
	// reuse the previous value", not "no energy available"
	assert.False(t, r.Changed)
	assert.Zero(t, r.Power)

	// WHEN the query crosses the boundary
	r = s.Supply(10)
	assert.True(t, r.Changed)
	assert.InDelta(t, 40, r.Power, 1e-9)
}

func TestTraceSupplier_RealZeroSupplyIsChanged(t *testing.T) {
	energy := BuildFragments([]Sample{{0, 100}, {10, 0}})
	s := NewTraceSupplier(EnergyClean, energy, nil, 0)
	s.Supply(0)

	r := s.Supply(12)

	assert.True(t, r.Changed, "a zero-valued fragment is a real change")
	assert.Zero(t, r.Power)
}

func TestTraceSupplier_StartTimeOffset(t *testing.T) {
	// GIVEN a trace in absolute time and a simulation starting at 1000
	energy := BuildFragments([]Sample{{1000, 10}, {1500, 20}})
	s := NewTraceSupplier(EnergyNonClean, energy, nil, 1000)

	// THEN simulation time 600 maps to absolute 1600
	r := s.Supply(600)
	assert.InDelta(t, 20, r.Power, 1e-9)
	assert.Equal(t, EnergyNonClean, s.Kind())
	assert.Equal(t, SupplyTrace, s.Model())
}

func TestTraceSupplier_CarbonSeekIsIndependent(t *testing.T) {
	// GIVEN one energy fragment and carbon changing at t=5
	energy := BuildFragments([]Sample{{0, 100}})
	carbon := BuildFragments([]Sample{{0, 300}, {5, 120}})
	s := NewTraceSupplier(EnergyNonClean, energy, carbon, 0)

	r := s.Supply(0)
	assert.True(t, r.CarbonChanged)
	assert.InDelta(t, 300, r.CarbonIntensity, 1e-9)

	// WHEN energy stays in the same fragment but carbon crosses a boundary
	r = s.Supply(6)

	// THEN the carbon update is still reported
	assert.False(t, r.Changed)
	assert.True(t, r.CarbonChanged)
	assert.InDelta(t, 120, r.CarbonIntensity, 1e-9)

	r = s.Supply(7)
	assert.False(t, r.CarbonChanged)
}

func TestTraceSupplier_NextChange(t *testing.T) {
	energy := BuildFragments([]Sample{{100, 1}, {200, 2}})
	carbon := BuildFragments([]Sample{{100, 1}, {150, 2}})
	s := NewTraceSupplier(EnergyClean, energy, carbon, 100)

	assert.Equal(t, int64(50), s.NextChange(0), "carbon boundary at absolute 150")
	assert.Equal(t, int64(100), s.NextChange(60), "energy boundary at absolute 200")
	assert.Equal(t, Never, s.NextChange(150))
}

func TestTraceSupplier_EmptyEnergyPanics(t *testing.T) {
	s := NewTraceSupplier(EnergyClean, nil, nil, 0)
	assert.Panics(t, func() { s.Supply(0) })
}

func TestFunctionSupplier_AdvancesByElapsedTime(t *testing.T) {
	// GIVEN a curve between 0 and 200 with period 400 and no phase shift
	curve := Sinusoid{Min: 0, Max: 200, Period: 400}
	s := NewFunctionSupplier(EnergyClean, curve, nil, 0, 50)

	// WHEN 100ms elapse (a quarter period)
	r := s.Supply(100)
	// THEN the value is at the crest
	assert.True(t, r.Changed)
	assert.InDelta(t, 200, r.Power, 1e-9)
	assert.Equal(t, int64(100), s.Clock())

	// WHEN another 100ms elapse: the argument is elapsed time, not absolute
	r = s.Supply(100)
	assert.Equal(t, int64(200), s.Clock())
	assert.InDelta(t, 100, r.Power, 1e-9)

	// WHEN zero time elapses the value is re-reported unchanged
	r = s.Supply(0)
	assert.InDelta(t, 100, r.Power, 1e-9)
	assert.Equal(t, int64(250), s.NextChange(200))
}

func TestFunctionSupplier_NeverNegative(t *testing.T) {
	curve := Sinusoid{Min: -100, Max: 100, Period: 400}
	s := NewFunctionSupplier(EnergyClean, curve, nil, 0, 100)

	r := s.Supply(300) // trough
	assert.Zero(t, r.Power)
	assert.Equal(t, int64(400), s.NextChange(300))
}

func TestFunctionSupplier_ZeroIntervalOnlyForFlatCurves(t *testing.T) {
	assert.Panics(t, func() {
		NewFunctionSupplier(EnergyClean, Sinusoid{Min: 0, Max: 200, Period: 400}, nil, 0, 0)
	})

	s := NewFunctionSupplier(EnergyClean, ConstantSupply(10), nil, 0, 0)
	assert.Equal(t, Never, s.NextChange(0))

	// A curve clamped to zero everywhere is flat too.
	s = NewFunctionSupplier(EnergyClean, Sinusoid{Min: -20, Max: -10, Period: 400}, nil, 0, 0)
	assert.Zero(t, s.Supply(100).Power)
}

func TestFunctionSupplier_CarbonUsesClockPlusStart(t *testing.T) {
	carbon := BuildFragments([]Sample{{1000, 50}, {1100, 80}})
	s := NewFunctionSupplier(EnergyClean, ConstantSupply(10), carbon, 1000, 0)

	r := s.Supply(0)
	assert.InDelta(t, 50, r.CarbonIntensity, 1e-9)

	r = s.Supply(150)
	assert.True(t, r.CarbonChanged)
	assert.InDelta(t, 80, r.CarbonIntensity, 1e-9)
	assert.Equal(t, Never, s.NextChange(150))
	assert.Equal(t, int64(100), s.NextChange(0))
}

func TestSinusoid_Validate(t *testing.T) {
	assert.NoError(t, Sinusoid{Min: 0, Max: 10, Period: 1}.Validate())
	assert.Error(t, Sinusoid{Min: 10, Max: 0, Period: 1}.Validate())
	assert.Error(t, Sinusoid{Min: 0, Max: 10, Period: 0}.Validate())
	assert.Error(t, Sinusoid{Min: 0, Max: 10, Period: math.Inf(1)}.Validate())
}

func TestSinusoid_PhaseShift(t *testing.T) {
	// GIVEN a -π/2 shift, the curve starts at its minimum
	s := Sinusoid{Min: 200, Max: 800, Period: 24, PhaseShift: -math.Pi / 2}
	assert.InDelta(t, 200, s.ValueAt(0), 1e-9)
	assert.InDelta(t, 800, s.ValueAt(12), 1e-9)
}
