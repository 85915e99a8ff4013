package sim

import (
	"math"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))
	name := SubsystemSupply("cluster-a", EnergyClean)

	for i := 0; i < 3; i++ {
		v1 := rng1.ForSubsystem(name).Float64()
		v2 := rng2.ForSubsystem(name).Float64()
		if v1 != v2 {
			t.Errorf("Value %d: got %v and %v, want identical", i, v1, v2)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from source A doesn't affect source B
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))
	a := SubsystemSupply("a", EnergyClean)
	b := SubsystemSupply("b", EnergyClean)

	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(a).Float64()
	}

	for i := 0; i < 5; i++ {
		got := rngA.ForSubsystem(b).Float64()
		want := rngB.ForSubsystem(b).Float64()
		if got != want {
			t.Errorf("Value %d: source b shifted by draws on source a (%v != %v)", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstances(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(7))
	name := SubsystemSupply("x", EnergyNonClean)
	if rng.ForSubsystem(name) != rng.ForSubsystem(name) {
		t.Error("ForSubsystem must return the cached instance for the same name")
	}
	if rng.Key() != NewSimulationKey(7) {
		t.Errorf("Key() = %d, want 7", rng.Key())
	}
}

func TestRandomSupplyProfile_SpacingAndRange(t *testing.T) {
	// GIVEN a profile of 100 steps one hour apart with max 5000W
	rng := NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem("p")
	samples := RandomSupplyProfile(rng, 1000, 3_600_000, 100, 5000)

	// THEN timestamps are evenly spaced and values lie in [0, 5000)
	if len(samples) != 100 {
		t.Fatalf("len = %d, want 100", len(samples))
	}
	for i, s := range samples {
		if want := int64(1000 + i*3_600_000); s.Timestamp != want {
			t.Errorf("sample %d timestamp = %d, want %d", i, s.Timestamp, want)
		}
		if s.Value < 0 || s.Value >= 5000 {
			t.Errorf("sample %d value %f outside [0, 5000)", i, s.Value)
		}
	}
}
