package flow

import (
	"fmt"
	"math"

	"github.com/inference-sim/power-sim/sim"
	"github.com/inference-sim/power-sim/sim/record"
)

// joulesPerKWh converts energy in joules to kilowatt-hours for carbon accounting.
const joulesPerKWh = 3_600_000.0

// SourceConfig holds the construction parameters of a PowerSource.
type SourceConfig struct {
	Name     string
	Capacity float64 // watts; math.Inf(1) for an unbounded source

	// Manager composes clean, non-clean and battery supply. When nil the
	// source supplies its whole (capped) demand as non-clean power at the
	// intensity given by Carbon.
	Manager   *sim.Manager
	Carbon    []sim.Fragment
	StartTime int64 // absolute time of simulation time 0, for Carbon

	Recorder record.Recorder // optional
}

// PowerSource is the root of a power tree. It turns the demand of its
// consumer into supply, keeps cumulative energy and carbon counters and
// reports every evaluation to its recorder.
type PowerSource struct {
	node

	capacity  float64
	manager   *sim.Manager
	carbon    *sim.Cursor
	startTime int64
	recorder  record.Recorder

	out *Edge

	demand          float64
	supply          float64
	detail          sim.EnergyDetail
	carbonIntensity float64 // source-level intensity when there is no manager

	counters   record.Counters
	lastUpdate int64
}

func newPowerSource(n node, cfg SourceConfig) *PowerSource {
	if math.IsNaN(cfg.Capacity) || cfg.Capacity < 0 {
		panic(fmt.Sprintf("power source %q: capacity must be non-negative, got %f", cfg.Name, cfg.Capacity))
	}
	s := &PowerSource{
		node:      n,
		capacity:  cfg.Capacity,
		manager:   cfg.Manager,
		startTime: cfg.StartTime,
		recorder:  cfg.Recorder,
	}
	if cfg.Manager == nil && len(cfg.Carbon) > 0 {
		s.carbon = sim.NewCursor(cfg.Carbon)
	}
	return s
}

func (s *PowerSource) Kind() NodeKind { return KindPowerSource }
func (s *PowerSource) Capacity() float64 { return s.capacity }
func (s *PowerSource) Manager() *sim.Manager { return s.manager }
func (s *PowerSource) Demand() float64 { return s.demand }
func (s *PowerSource) Supply() float64 { return s.supply }
func (s *PowerSource) Detail() sim.EnergyDetail { return s.detail }
func (s *PowerSource) Closed() bool { return s.closed }

// Counters returns the cumulative counters up to the last update.
func (s *PowerSource) Counters() record.Counters { return s.counters }

// CarbonIntensity returns the intensity of the non-clean power currently supplied.
func (s *PowerSource) CarbonIntensity() float64 {
	if s.manager != nil {
		return s.manager.CarbonIntensity(sim.EnergyNonClean)
	}
	return s.carbonIntensity
}

// UpdateCounters integrates the current allocation over [last update, now].
// Energy is power × duration: W × ms × 0.001 = J.
func (s *PowerSource) UpdateCounters(now int64) {
	duration := now - s.lastUpdate
	if duration <= 0 {
		return
	}
	s.lastUpdate = now
	seconds := float64(duration) * 0.001

	clean := s.detail.CleanUsed * seconds
	nonClean := s.detail.NonCleanUsed * seconds
	battery := s.detail.BatteryDischarge * seconds

	s.counters.TotalEnergy += s.supply * seconds
	s.counters.CleanEnergy += clean
	s.counters.NonCleanEnergy += nonClean
	s.counters.BatteryEnergy += battery
	s.counters.CarbonEmission += (s.detail.NonCleanCarbonIntensity*nonClean + s.detail.CleanCarbonIntensity*clean) / joulesPerKWh
}

// evaluate recomputes the supply for the demand on the outgoing edge.
func (s *PowerSource) evaluate(now int64) {
	s.UpdateCounters(now)

	demand := 0.0
	if s.out != nil {
		demand = s.out.demand
	}
	s.demand = demand
	capped := math.Min(math.Max(0, demand), s.capacity)

	if s.manager != nil {
		s.detail = s.manager.SupplyPower(now, capped)
	} else {
		if s.carbon != nil {
			if f, changed := s.carbon.Seek(now + s.startTime); changed {
				s.carbonIntensity = f.Value
			}
		}
		s.detail = sim.EnergyDetail{NonCleanUsed: capped, NonCleanCarbonIntensity: s.carbonIntensity}
	}
	s.supply = math.Min(s.detail.Total(), s.capacity)

	if s.recorder != nil {
		s.recorder.Record(s.record(now))
	}
	if s.out != nil {
		s.out.pushSupply(s.supply)
	}
}

func (s *PowerSource) record(now int64) record.EnergyRecord {
	r := record.EnergyRecord{
		Source:                  s.name,
		Clock:                   now,
		Demand:                  s.demand,
		Supply:                  s.supply,
		CleanUsed:               s.detail.CleanUsed,
		NonCleanUsed:            s.detail.NonCleanUsed,
		BatteryDischarge:        s.detail.BatteryDischarge,
		CleanCarbonIntensity:    s.detail.CleanCarbonIntensity,
		NonCleanCarbonIntensity: s.detail.NonCleanCarbonIntensity,
	}
	if s.manager != nil {
		r.BatteryLevel = s.manager.Battery().ChargeLevel()
	}
	return r
}

// nextChange returns the next time the source must be re-evaluated on its own.
func (s *PowerSource) nextChange(now int64) int64 {
	if s.manager != nil {
		return s.manager.NextChange(now)
	}
	if s.carbon != nil {
		end := s.carbon.NextBoundary(now + s.startTime)
		if end == math.MaxInt64 {
			return sim.Never
		}
		return end - s.startTime
	}
	return sim.Never
}

// Close releases the source's carbon trace and stops further evaluations.
// Counters stay readable. Safe to call more than once.
func (s *PowerSource) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.carbon = nil
}
