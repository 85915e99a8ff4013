package provision

import (
	"fmt"

	"github.com/inference-sim/power-sim/sim"
	"github.com/inference-sim/power-sim/sim/energytrace"
	"github.com/inference-sim/power-sim/sim/topology"
)

// BuildManager constructs the energy manager described by spec for the power
// source name. It returns (nil, nil) for an unmanaged source and (nil, err)
// when any part of the spec cannot be built; a partially built manager is
// never returned.
func BuildManager(name string, spec *topology.PowerSourceSpec, startTime int64, cache *energytrace.Cache, rng *sim.PartitionedRNG) (*sim.Manager, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if !spec.Managed() {
		return nil, nil
	}

	battery, err := sim.NewBattery(sim.BatteryConfig{
		Kind:             sim.BatteryKind(spec.Battery.Type),
		Capacity:         spec.Battery.Capacity,
		ChargeEfficiency: spec.Battery.ChargeEfficiency,
		MaxChargeRate:    spec.Battery.MaxChargeRate,
		InitialLevel:     spec.Battery.InitialLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("power_source.battery: %w", err)
	}
	clean, err := buildSupplier(name, sim.EnergyClean, spec.Clean, startTime, cache, rng)
	if err != nil {
		return nil, fmt.Errorf("power_source.clean: %w", err)
	}
	nonClean, err := buildSupplier(name, sim.EnergyNonClean, spec.NonClean, startTime, cache, rng)
	if err != nil {
		return nil, fmt.Errorf("power_source.non_clean: %w", err)
	}
	return sim.NewManager(sim.ManagerPolicy(spec.Manager), clean, nonClean, battery)
}

// buildSupplier maps one energy spec onto a trace or function supplier.
func buildSupplier(source string, kind sim.EnergyKind, e *topology.EnergySpec, startTime int64, cache *energytrace.Cache, rng *sim.PartitionedRNG) (*sim.Supplier, error) {
	var carbon []sim.Fragment
	if e.CarbonTrace != "" {
		fragments, err := loadTrace(cache, e.CarbonTrace, energytrace.ColumnCarbonIntensity)
		if err != nil {
			return nil, err
		}
		carbon = fragments
	}

	switch e.Type {
	case topology.EnergyConstant:
		return sim.NewFunctionSupplier(kind, sim.ConstantSupply(e.Power), carbon, startTime, 0), nil
	case topology.EnergyFunction:
		return sim.NewFunctionSupplier(kind, e.Sinusoid.Curve(), carbon, startTime, e.Interval.Millis()), nil
	case topology.EnergyTrace:
		energy, err := loadTrace(cache, e.Trace, energytrace.ColumnEnergySupply)
		if err != nil {
			return nil, err
		}
		return sim.NewTraceSupplier(kind, energy, carbon, startTime), nil
	case topology.EnergyRandom:
		r := rng.ForSubsystem(sim.SubsystemSupply(source, kind))
		samples := sim.RandomSupplyProfile(r, startTime, e.Interval.Millis(), e.Steps, e.MaxPower)
		return sim.NewTraceSupplier(kind, sim.BuildFragments(samples), carbon, startTime), nil
	default:
		panic(fmt.Sprintf("unhandled energy type %q", e.Type))
	}
}

func loadTrace(cache *energytrace.Cache, path string, column energytrace.Column) ([]sim.Fragment, error) {
	fragments, err := cache.Get(path, column)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("trace %s has no %s rows", path, column)
	}
	return fragments, nil
}
