package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSupplier(kind EnergyKind, power float64) *Supplier {
	return NewFunctionSupplier(kind, ConstantSupply(power), nil, 0, 0)
}

func newTestManager(t *testing.T, policy ManagerPolicy, clean, nonClean float64, battery *Battery) *Manager {
	t.Helper()
	m, err := NewManager(policy, constantSupplier(EnergyClean, clean), constantSupplier(EnergyNonClean, nonClean), battery)
	require.NoError(t, err)
	return m
}

func TestNewManager_InvalidArguments_ReturnError(t *testing.T) {
	b := newTestBattery(t, BatterySmooth, 500, 0)
	clean := constantSupplier(EnergyClean, 1)
	nonClean := constantSupplier(EnergyNonClean, 1)

	tests := []struct {
		name     string
		policy   ManagerPolicy
		clean    *Supplier
		nonClean *Supplier
		battery  *Battery
	}{
		{"unknown policy", "greedy", clean, nonClean, b},
		{"missing clean", ManagerMixedSource, nil, nonClean, b},
		{"missing non-clean", ManagerMixedSource, clean, nil, b},
		{"swapped kinds", ManagerMixedSource, nonClean, clean, b},
		{"missing battery", ManagerSingleSource, clean, nonClean, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.policy, tt.clean, tt.nonClean, tt.battery)
			assert.Error(t, err)
		})
	}
}

func TestMixedManager_CleanShortfall_CoveredByNonClean(t *testing.T) {
	// GIVEN clean 100W, non-clean 50W and an empty 500W battery
	b := newTestBattery(t, BatterySmooth, 500, 0)
	m := newTestManager(t, ManagerMixedSource, 100, 50, b)

	// WHEN 130W is demanded
	d := m.SupplyPower(0, 130)

	// THEN clean covers 100W, the battery nothing and non-clean the last 30W
	assert.InDelta(t, 100, d.CleanUsed, 1e-9)
	assert.InDelta(t, 0, d.BatteryDischarge, 1e-9)
	assert.InDelta(t, 30, d.NonCleanUsed, 1e-9)
	assert.InDelta(t, 130, d.Total(), 1e-9)
	assert.InDelta(t, 0, b.ChargeLevel(), 1e-9, "no clean surplus, battery unchanged")
}

func TestMixedManager_CleanSurplus_RechargesBattery(t *testing.T) {
	// GIVEN clean 200W and an empty battery with rate 100W and efficiency 0.9
	b := newTestBattery(t, BatterySmooth, 500, 0)
	m := newTestManager(t, ManagerMixedSource, 200, 50, b)

	// WHEN 50W is demanded
	d := m.SupplyPower(0, 50)

	// THEN clean covers it and the 150W surplus charges min(150, 100) * 0.9
	assert.InDelta(t, 50, d.CleanUsed, 1e-9)
	assert.Zero(t, d.NonCleanUsed)
	assert.Zero(t, d.BatteryDischarge)
	assert.InDelta(t, 90, b.ChargeLevel(), 1e-9)
	assert.Equal(t, BatteryCharging, b.State())
}

func TestMixedManager_BatteryBridgesGap(t *testing.T) {
	b := newTestBattery(t, BatterySmooth, 500, 60)
	m := newTestManager(t, ManagerMixedSource, 100, 1000, b)

	d := m.SupplyPower(0, 200)

	assert.InDelta(t, 100, d.CleanUsed, 1e-9)
	assert.InDelta(t, 60, d.BatteryDischarge, 1e-9)
	assert.InDelta(t, 40, d.NonCleanUsed, 1e-9)
	assert.Zero(t, b.ChargeLevel())
}

func TestMixedManager_InsufficientSupply_DeliversLessThanDemand(t *testing.T) {
	b := newTestBattery(t, BatterySmooth, 500, 0)
	m := newTestManager(t, ManagerMixedSource, 10, 20, b)

	d := m.SupplyPower(0, 100)

	assert.InDelta(t, 30, d.Total(), 1e-9)
}

func TestMixedManager_ZeroAndNegativeDemand(t *testing.T) {
	for _, demand := range []float64{0, -25} {
		b := newTestBattery(t, BatterySmooth, 500, 100)
		m := newTestManager(t, ManagerMixedSource, 40, 40, b)

		d := m.SupplyPower(0, demand)

		assert.Zero(t, d.Total(), "demand %f", demand)
		assert.InDelta(t, 136, b.ChargeLevel(), 1e-9, "whole clean supply charges the battery")
	}
}

func TestMixedManager_RandomInputs_LayerLimits(t *testing.T) {
	// GIVEN random supplies, battery levels and demands
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 500; i++ {
		clean := rng.Float64() * 300
		nonClean := rng.Float64() * 300
		level := rng.Float64() * 500
		demand := rng.Float64() * 600

		b := newTestBattery(t, BatterySmooth, 500, level)
		m := newTestManager(t, ManagerMixedSource, clean, nonClean, b)
		d := m.SupplyPower(0, demand)

		// THEN delivery never exceeds demand and each layer respects its limit
		if d.Total() > demand+1e-9 {
			t.Fatalf("case %d: delivered %f > demand %f", i, d.Total(), demand)
		}
		assert.LessOrEqual(t, d.CleanUsed, clean+1e-9)
		assert.LessOrEqual(t, d.NonCleanUsed, nonClean+1e-9)
		assert.LessOrEqual(t, d.BatteryDischarge, level+1e-9)
		// THEN battery is only drawn once clean is exhausted, non-clean once both are
		if d.BatteryDischarge > 0 {
			assert.InDelta(t, clean, d.CleanUsed, 1e-9)
		}
		if d.NonCleanUsed > 0 {
			assert.InDelta(t, clean, d.CleanUsed, 1e-9)
			assert.InDelta(t, level, d.BatteryDischarge, 1e-9)
		}
	}
}

func TestMixedManager_IncreasingDemand_CleanUsedNonDecreasing(t *testing.T) {
	// GIVEN random supplies and battery levels
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		clean := rng.Float64() * 300
		nonClean := rng.Float64() * 300
		level := rng.Float64() * 500

		// WHEN fresh managers serve an increasing demand series
		prevClean, prevTotal := 0.0, 0.0
		for demand := 0.0; demand <= 1200; demand += 25 {
			b := newTestBattery(t, BatterySmooth, 500, level)
			m := newTestManager(t, ManagerMixedSource, clean, nonClean, b)
			d := m.SupplyPower(0, demand)

			// THEN neither clean use nor total delivery ever drops
			if d.CleanUsed < prevClean-1e-9 {
				t.Fatalf("case %d: clean used fell from %f to %f at demand %f", i, prevClean, d.CleanUsed, demand)
			}
			if d.Total() < prevTotal-1e-9 {
				t.Fatalf("case %d: delivery fell from %f to %f at demand %f", i, prevTotal, d.Total(), demand)
			}
			prevClean, prevTotal = d.CleanUsed, d.Total()
		}
		// THEN past the combined supply every layer is drained
		assert.InDelta(t, clean+level+nonClean, prevTotal, 1e-9)
	}
}

func TestSingleManager_EachPathUsesOneSource(t *testing.T) {
	tests := []struct {
		name        string
		clean       float64
		nonClean    float64
		level       float64
		demand      float64
		wantClean   float64
		wantBattery float64
		wantGrid    float64
	}{
		{"clean covers demand", 200, 100, 0, 150, 150, 0, 0},
		{"battery covers demand", 50, 100, 300, 150, 0, 150, 0},
		// Only the grid is drawn once clean and battery each fall short, so
		// 150 W of demand gets 100 W although the three layers sum to 160 W.
		{"grid covers demand", 50, 100, 10, 150, 0, 0, 100},
		{"no clean and empty battery", 0, 500, 0, 150, 0, 0, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBattery(t, BatterySmooth, 500, tt.level)
			m := newTestManager(t, ManagerSingleSource, tt.clean, tt.nonClean, b)

			d := m.SupplyPower(0, tt.demand)

			assert.InDelta(t, tt.wantClean, d.CleanUsed, 1e-9)
			assert.InDelta(t, tt.wantBattery, d.BatteryDischarge, 1e-9)
			assert.InDelta(t, tt.wantGrid, d.NonCleanUsed, 1e-9)
			// winner takes all: at most one source is non-zero
			nonZero := 0
			for _, v := range []float64{d.CleanUsed, d.BatteryDischarge, d.NonCleanUsed} {
				if v > 0 {
					nonZero++
				}
			}
			assert.LessOrEqual(t, nonZero, 1)
		})
	}
}

func TestSingleManager_LeftoverCleanIgnoresCleanDraw(t *testing.T) {
	// GIVEN clean 200W covering a 50W demand on an empty battery
	b := newTestBattery(t, BatterySmooth, 500, 0)
	m := newTestManager(t, ManagerSingleSource, 200, 0, b)

	// WHEN the demand is served
	d := m.SupplyPower(0, 50)

	// THEN the battery is offered the whole 200W clean supply (minus the zero
	// non-clean draw), capped at the 100W rate, not the 150W surplus
	assert.InDelta(t, 50, d.CleanUsed, 1e-9)
	assert.InDelta(t, 90, b.ChargeLevel(), 1e-9)

	// AND with an uncapped rate the difference becomes visible
	b2, err := NewBattery(BatteryConfig{Kind: BatterySmooth, Capacity: 500, ChargeEfficiency: 1, MaxChargeRate: 1000})
	require.NoError(t, err)
	m2 := newTestManager(t, ManagerSingleSource, 200, 0, b2)
	m2.SupplyPower(0, 50)
	assert.InDelta(t, 200, b2.ChargeLevel(), 1e-9, "leftover is clean - non-clean used")
}

func TestSingleManager_GridPathChargesFromCleanMinusGrid(t *testing.T) {
	// GIVEN a clean supply too small for the demand and an empty battery
	b, err := NewBattery(BatteryConfig{Kind: BatterySmooth, Capacity: 500, ChargeEfficiency: 1, MaxChargeRate: 1000})
	require.NoError(t, err)
	m := newTestManager(t, ManagerSingleSource, 80, 30, b)

	d := m.SupplyPower(0, 100)

	// THEN grid covers 30W and the remaining 50W clean is stored
	assert.InDelta(t, 30, d.NonCleanUsed, 1e-9)
	assert.InDelta(t, 50, b.ChargeLevel(), 1e-9)
}

func TestManager_ReusesLastValueWhenTraceUnchanged(t *testing.T) {
	// GIVEN a trace clean supplier with one fragment
	clean := NewTraceSupplier(EnergyClean, BuildFragments([]Sample{{0, 100}, {1000, 20}}), nil, 0)
	nonClean := constantSupplier(EnergyNonClean, 500)
	b := newTestBattery(t, BatterySmooth, 500, 500)
	m, err := NewManager(ManagerMixedSource, clean, nonClean, b)
	require.NoError(t, err)

	// WHEN two calls land in the same fragment
	first := m.SupplyPower(0, 80)
	second := m.SupplyPower(10, 80)

	// THEN the second call still sees 100W of clean supply
	assert.InDelta(t, 80, first.CleanUsed, 1e-9)
	assert.InDelta(t, 80, second.CleanUsed, 1e-9)

	third := m.SupplyPower(1000, 80)
	assert.InDelta(t, 20, third.CleanUsed, 1e-9)
	assert.InDelta(t, 60, third.BatteryDischarge, 1e-9)
	assert.Zero(t, third.NonCleanUsed)
}

func TestManager_CarbonIntensityReported(t *testing.T) {
	carbon := BuildFragments([]Sample{{0, 400}, {50, 250}})
	nonClean := NewTraceSupplier(EnergyNonClean, BuildFragments([]Sample{{0, 100}}), carbon, 0)
	clean := NewTraceSupplier(EnergyClean, BuildFragments([]Sample{{0, 0}}), BuildFragments([]Sample{{0, 20}}), 0)
	m, err := NewManager(ManagerMixedSource, clean, nonClean, newTestBattery(t, BatterySmooth, 500, 0))
	require.NoError(t, err)

	d := m.SupplyPower(0, 10)
	assert.InDelta(t, 20, d.CleanCarbonIntensity, 1e-9)
	assert.InDelta(t, 400, d.NonCleanCarbonIntensity, 1e-9)

	d = m.SupplyPower(60, 10)
	assert.InDelta(t, 250, d.NonCleanCarbonIntensity, 1e-9)
	assert.InDelta(t, 250, m.CarbonIntensity(EnergyNonClean), 1e-9)
	assert.Equal(t, Never, m.NextChange(60))
	assert.Equal(t, int64(50), m.NextChange(0))
}

func TestManager_FunctionSupplierReceivesElapsedTime(t *testing.T) {
	// GIVEN a clean curve from 0 to 200 with period 400
	clean := NewFunctionSupplier(EnergyClean, Sinusoid{Min: 0, Max: 200, Period: 400}, nil, 0, 50)
	m, err := NewManager(ManagerMixedSource, clean, constantSupplier(EnergyNonClean, 0), newTestBattery(t, BatterySmooth, 500, 0))
	require.NoError(t, err)

	m.SupplyPower(50, 10)
	// WHEN called at absolute simulation time 100
	d := m.SupplyPower(100, 1000)

	// THEN the supplier clock sits at 100 (the crest), not 150
	assert.Equal(t, int64(100), clean.Clock())
	assert.InDelta(t, 200, d.CleanUsed, 1e-9)
}

func TestIsValidManagerPolicy(t *testing.T) {
	assert.True(t, IsValidManagerPolicy("single"))
	assert.True(t, IsValidManagerPolicy("mixed"))
	assert.False(t, IsValidManagerPolicy("Mixed"))
}
