package sim

import (
	"fmt"
	"math"
)

// ManagerPolicy is the closed set of energy-composition policies.
type ManagerPolicy string

const (
	// ManagerSingleSource satisfies each demand from exactly one of clean
	// supply, battery or non-clean supply (winner takes all).
	ManagerSingleSource ManagerPolicy = "single"
	// ManagerMixedSource layers clean supply, battery and non-clean supply
	// against the remaining demand.
	ManagerMixedSource ManagerPolicy = "mixed"
)

// validManagerPolicies maps accepted manager policy strings.
var validManagerPolicies = map[ManagerPolicy]bool{
	ManagerSingleSource: true,
	ManagerMixedSource:  true,
}

// IsValidManagerPolicy returns true if name is a recognized manager policy.
func IsValidManagerPolicy(name string) bool {
	return validManagerPolicies[ManagerPolicy(name)]
}

// EnergyDetail is the outcome of one demand-satisfaction call, in watts.
type EnergyDetail struct {
	CleanUsed               float64
	NonCleanUsed            float64
	BatteryDischarge        float64
	CleanCarbonIntensity    float64
	NonCleanCarbonIntensity float64
}

// Total returns the power delivered to the demand.
func (d EnergyDetail) Total() float64 {
	return d.CleanUsed + d.NonCleanUsed + d.BatteryDischarge
}

// Manager composes a clean supplier, a non-clean supplier and a battery into
// one decision per SupplyPower call. It is the only owner of its battery.
//
// Thread-safety: NOT thread-safe.
type Manager struct {
	policy   ManagerPolicy
	clean    *Supplier
	nonClean *Supplier
	battery  *Battery

	// last values reported by the suppliers; reused when a reading is unchanged
	lastClean    float64
	lastNonClean float64
	lastTime     int64

	cleanCarbonIntensity    float64
	nonCleanCarbonIntensity float64
}

// NewManager wires two suppliers and a battery under policy.
func NewManager(policy ManagerPolicy, clean, nonClean *Supplier, battery *Battery) (*Manager, error) {
	if !validManagerPolicies[policy] {
		return nil, fmt.Errorf("unknown energy manager %q; valid: single, mixed", policy)
	}
	if clean == nil || nonClean == nil {
		return nil, fmt.Errorf("energy manager %q requires both a clean and a non-clean supplier", policy)
	}
	if clean.Kind() != EnergyClean {
		return nil, fmt.Errorf("clean supplier has kind %q", clean.Kind())
	}
	if nonClean.Kind() != EnergyNonClean {
		return nil, fmt.Errorf("non-clean supplier has kind %q", nonClean.Kind())
	}
	if battery == nil {
		return nil, fmt.Errorf("energy manager %q requires a battery", policy)
	}
	return &Manager{
		policy:   policy,
		clean:    clean,
		nonClean: nonClean,
		battery:  battery,
	}, nil
}

// Policy returns the manager's composition policy.
func (m *Manager) Policy() ManagerPolicy { return m.policy }

// Battery returns the managed battery for reporting. Callers must not mutate it.
func (m *Manager) Battery() *Battery { return m.battery }

// SupplyPower decides how demand (watts) is covered at simulation time t.
// Negative demand is treated as zero.
func (m *Manager) SupplyPower(t int64, demand float64) EnergyDetail {
	demand = math.Max(0, demand)
	clean := m.read(m.clean, t, &m.lastClean)
	nonClean := m.read(m.nonClean, t, &m.lastNonClean)
	m.lastTime = t

	var d EnergyDetail
	switch m.policy {
	case ManagerSingleSource:
		d = m.supplySingle(demand, clean, nonClean)
	case ManagerMixedSource:
		d = m.supplyMixed(demand, clean, nonClean)
	default:
		panic(fmt.Sprintf("unhandled energy manager %q", m.policy))
	}
	d.CleanCarbonIntensity = m.cleanCarbonIntensity
	d.NonCleanCarbonIntensity = m.nonCleanCarbonIntensity
	return d
}

// read queries s with the time argument its variant expects and applies any
// carbon update carried by the reading.
func (m *Manager) read(s *Supplier, t int64, last *float64) float64 {
	var r SupplyReading
	switch s.Model() {
	case SupplyTrace:
		r = s.Supply(t)
	case SupplyFunction:
		r = s.Supply(t - m.lastTime)
	default:
		panic(fmt.Sprintf("unhandled supply model %v", s.Model()))
	}
	if r.Changed {
		*last = r.Power
	}
	if r.CarbonChanged {
		m.UpdateCarbonIntensity(s.Kind(), r.CarbonIntensity)
	}
	return *last
}

func (m *Manager) supplySingle(demand, clean, nonClean float64) EnergyDetail {
	m.battery.Idle()

	var d EnergyDetail
	if clean >= demand {
		d.CleanUsed = demand
	} else if m.battery.ChargeLevel() >= demand {
		d.BatteryDischarge = m.battery.Discharge(demand)
	} else {
		d.NonCleanUsed = math.Min(demand, nonClean)
	}

	// Leftover clean energy only subtracts the non-clean draw, not the clean draw.
	cleanRemain := clean - d.NonCleanUsed
	if cleanRemain > 0 && !m.battery.IsFull() {
		m.battery.Charge(cleanRemain)
	}
	return d
}

func (m *Manager) supplyMixed(demand, clean, nonClean float64) EnergyDetail {
	var d EnergyDetail
	remaining := demand

	d.CleanUsed = math.Min(clean, remaining)
	remaining -= d.CleanUsed

	if remaining > 0 && m.battery.ChargeLevel() > 0 {
		d.BatteryDischarge = m.battery.Discharge(remaining)
		remaining -= d.BatteryDischarge
	}

	if remaining > 0 {
		d.NonCleanUsed = math.Min(nonClean, remaining)
	}

	cleanRemain := clean - d.CleanUsed
	if cleanRemain > 0 && !m.battery.IsFull() {
		m.battery.Charge(cleanRemain)
	}
	return d
}

// UpdateCarbonIntensity stores the latest carbon intensity for kind.
// It is reported in EnergyDetail and never used in allocation.
func (m *Manager) UpdateCarbonIntensity(kind EnergyKind, intensity float64) {
	switch kind {
	case EnergyClean:
		m.cleanCarbonIntensity = intensity
	case EnergyNonClean:
		m.nonCleanCarbonIntensity = intensity
	}
}

// CarbonIntensity returns the latest intensity stored for kind.
func (m *Manager) CarbonIntensity(kind EnergyKind) float64 {
	if kind == EnergyClean {
		return m.cleanCarbonIntensity
	}
	return m.nonCleanCarbonIntensity
}

// NextChange returns the earliest simulation time after now at which either
// supplier may report a different value.
func (m *Manager) NextChange(now int64) int64 {
	return min(m.clean.NextChange(now), m.nonClean.NextChange(now))
}
