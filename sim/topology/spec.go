// Package topology defines the YAML description of a simulated datacenter:
// clusters, the power source feeding each cluster and the hosts drawing from it.
package topology

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/power-sim/sim"
)

// Topology is the top-level datacenter configuration.
// Loaded from YAML via LoadTopology(path).
type Topology struct {
	Version   string        `yaml:"version"`
	Seed      int64         `yaml:"seed"`
	StartTime int64         `yaml:"start_time"` // epoch ms of simulation time 0
	Horizon   Duration      `yaml:"horizon,omitempty"`
	Clusters  []ClusterSpec `yaml:"clusters"`
}

// ClusterSpec is one power tree: a power source, its distributor and its hosts.
type ClusterSpec struct {
	Name        string          `yaml:"name"`
	PowerSource PowerSourceSpec `yaml:"power_source"`
	Hosts       []HostSpec      `yaml:"hosts"`
}

// PowerSourceSpec configures the source at the root of a cluster.
type PowerSourceSpec struct {
	Capacity    float64      `yaml:"capacity,omitempty"` // watts; 0 = unbounded
	CarbonTrace string       `yaml:"carbon_trace,omitempty"`
	Manager     string       `yaml:"manager,omitempty"` // "", "none", "single", "mixed"
	Battery     *BatterySpec `yaml:"battery,omitempty"`
	Clean       *EnergySpec  `yaml:"clean,omitempty"`
	NonClean    *EnergySpec  `yaml:"non_clean,omitempty"`
}

// BatterySpec configures the battery of a managed power source.
type BatterySpec struct {
	Type             string  `yaml:"type"` // Smooth or Hard
	Capacity         float64 `yaml:"capacity"`
	ChargeEfficiency float64 `yaml:"charge_efficiency"`
	MaxChargeRate    float64 `yaml:"max_charge_rate"`
	InitialLevel     float64 `yaml:"initial_level,omitempty"`
}

// EnergySpec configures one supplier of a managed power source.
type EnergySpec struct {
	Type        string        `yaml:"type"`
	Power       float64       `yaml:"power,omitempty"`    // constant
	Sinusoid    *SinusoidSpec `yaml:"sinusoid,omitempty"` // function
	Interval    Duration      `yaml:"interval,omitempty"` // function sampling tick, random spacing
	Trace       string        `yaml:"trace,omitempty"`    // trace
	CarbonTrace string        `yaml:"carbon_trace,omitempty"`
	Steps       int           `yaml:"steps,omitempty"`     // random
	MaxPower    float64       `yaml:"max_power,omitempty"` // random
}

// SinusoidSpec parameterizes a function supplier.
type SinusoidSpec struct {
	Min        float64  `yaml:"min"`
	Max        float64  `yaml:"max"`
	Period     Duration `yaml:"period"`
	PhaseShift float64  `yaml:"phase_shift,omitempty"` // radians
}

// HostSpec describes Count identical hosts.
type HostSpec struct {
	Name        string  `yaml:"name"`
	Count       int     `yaml:"count,omitempty"` // 0 means 1
	Power       float64 `yaml:"power,omitempty"` // constant demand in watts
	DemandTrace string  `yaml:"demand_trace,omitempty"`
}

// Energy types.
const (
	EnergyConstant = "constant"
	EnergyFunction = "function"
	EnergyTrace    = "trace"
	EnergyRandom   = "random"
)

// Manager names. An empty manager means ManagerNone.
const (
	ManagerNone   = "none"
	ManagerSingle = string(sim.ManagerSingleSource)
	ManagerMixed  = string(sim.ManagerMixedSource)
)

// Valid value registries.
var (
	validManagers = map[string]bool{
		"": true, ManagerNone: true, ManagerSingle: true, ManagerMixed: true,
	}
	validEnergyTypes = map[string]bool{
		EnergyConstant: true, EnergyFunction: true, EnergyTrace: true, EnergyRandom: true,
	}
)

// IsValidManager reports whether name is an accepted power source manager.
func IsValidManager(name string) bool {
	return validManagers[name]
}

// IsValidEnergyType reports whether name is an accepted energy type.
func IsValidEnergyType(name string) bool {
	return validEnergyTypes[name]
}

// Managed reports whether the source composes clean, non-clean and battery supply.
func (p *PowerSourceSpec) Managed() bool {
	return p.Manager != "" && p.Manager != ManagerNone
}

// HostCount returns the number of hosts the spec expands to.
func (h *HostSpec) HostCount() int {
	if h.Count <= 0 {
		return 1
	}
	return h.Count
}

// LoadTopology reads and parses a YAML topology file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// Relative trace paths are resolved against the file's directory.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}
	var t Topology
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&t); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}
	t.resolvePaths(filepath.Dir(path))
	return &t, nil
}

func (t *Topology) resolvePaths(dir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	for i := range t.Clusters {
		ps := &t.Clusters[i].PowerSource
		resolve(&ps.CarbonTrace)
		for _, e := range []*EnergySpec{ps.Clean, ps.NonClean} {
			if e != nil {
				resolve(&e.Trace)
				resolve(&e.CarbonTrace)
			}
		}
		for j := range t.Clusters[i].Hosts {
			resolve(&t.Clusters[i].Hosts[j].DemandTrace)
		}
	}
}

// Validate checks the structure of the topology: cluster and host naming,
// registry values and host demand. Power source completeness is checked by
// PowerSourceSpec.Validate at provisioning time, so that one malformed
// source only disables its own cluster.
func (t *Topology) Validate() error {
	if t.StartTime < 0 {
		return fmt.Errorf("start_time must be non-negative, got %d", t.StartTime)
	}
	if t.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative, got %s", t.Horizon)
	}
	if len(t.Clusters) == 0 {
		return fmt.Errorf("at least one cluster required")
	}
	seen := make(map[string]bool, len(t.Clusters))
	for i := range t.Clusters {
		c := &t.Clusters[i]
		prefix := fmt.Sprintf("clusters[%d]", i)
		if c.Name == "" {
			return fmt.Errorf("%s: name required", prefix)
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate cluster name %q", prefix, c.Name)
		}
		seen[c.Name] = true
		if !validManagers[c.PowerSource.Manager] {
			return fmt.Errorf("%s.power_source: unknown manager %q; valid: none, single, mixed", prefix, c.PowerSource.Manager)
		}
		if err := validateHosts(prefix, c.Hosts); err != nil {
			return err
		}
	}
	return nil
}

func validateHosts(prefix string, hosts []HostSpec) error {
	if len(hosts) == 0 {
		return fmt.Errorf("%s: at least one host required", prefix)
	}
	seen := make(map[string]bool, len(hosts))
	for i, h := range hosts {
		hp := fmt.Sprintf("%s.hosts[%d]", prefix, i)
		if h.Name == "" {
			return fmt.Errorf("%s: name required", hp)
		}
		if seen[h.Name] {
			return fmt.Errorf("%s: duplicate host name %q", hp, h.Name)
		}
		seen[h.Name] = true
		if h.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative, got %d", hp, h.Count)
		}
		if err := validateFiniteNonNegative(hp+".power", h.Power); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the power source can be built.
func (p *PowerSourceSpec) Validate() error {
	if err := validateFiniteNonNegative("power_source.capacity", p.Capacity); err != nil {
		return err
	}
	if !validManagers[p.Manager] {
		return fmt.Errorf("power_source: unknown manager %q; valid: none, single, mixed", p.Manager)
	}
	if !p.Managed() {
		return nil
	}
	if p.Battery == nil {
		return fmt.Errorf("power_source.battery: required by manager %q", p.Manager)
	}
	if err := p.Battery.Validate(); err != nil {
		return fmt.Errorf("power_source.battery: %w", err)
	}
	if p.Clean == nil {
		return fmt.Errorf("power_source.clean: required by manager %q", p.Manager)
	}
	if err := p.Clean.Validate(); err != nil {
		return fmt.Errorf("power_source.clean: %w", err)
	}
	if p.NonClean == nil {
		return fmt.Errorf("power_source.non_clean: required by manager %q", p.Manager)
	}
	if err := p.NonClean.Validate(); err != nil {
		return fmt.Errorf("power_source.non_clean: %w", err)
	}
	return nil
}

// Validate checks the battery parameters.
func (b *BatterySpec) Validate() error {
	if !sim.IsValidBatteryKind(b.Type) {
		return fmt.Errorf("unknown battery type %q; valid: Smooth, Hard", b.Type)
	}
	if err := validateFinitePositive("capacity", b.Capacity); err != nil {
		return err
	}
	if err := validateFinitePositive("charge_efficiency", b.ChargeEfficiency); err != nil {
		return err
	}
	if b.ChargeEfficiency > 1 {
		return fmt.Errorf("charge_efficiency must be <= 1, got %f", b.ChargeEfficiency)
	}
	if err := validateFiniteNonNegative("max_charge_rate", b.MaxChargeRate); err != nil {
		return err
	}
	if err := validateFiniteNonNegative("initial_level", b.InitialLevel); err != nil {
		return err
	}
	if b.InitialLevel > b.Capacity {
		return fmt.Errorf("initial_level %f exceeds capacity %f", b.InitialLevel, b.Capacity)
	}
	return nil
}

// Validate checks that the fields required by the energy type are present.
func (e *EnergySpec) Validate() error {
	switch e.Type {
	case EnergyConstant:
		return validateFiniteNonNegative("power", e.Power)
	case EnergyFunction:
		if e.Sinusoid == nil {
			return fmt.Errorf("sinusoid: required for type %q", e.Type)
		}
		curve := e.Sinusoid.Curve()
		if err := curve.Validate(); err != nil {
			return fmt.Errorf("sinusoid: %w", err)
		}
		if e.Interval < 0 {
			return fmt.Errorf("interval must be non-negative, got %s", e.Interval)
		}
		if !curve.Flat() && e.Interval.Millis() <= 0 {
			return fmt.Errorf("interval must be at least 1ms for a non-flat sinusoid, got %s", e.Interval)
		}
		return nil
	case EnergyTrace:
		if e.Trace == "" {
			return fmt.Errorf("trace: path required for type %q", e.Type)
		}
		return nil
	case EnergyRandom:
		if e.Steps <= 0 {
			return fmt.Errorf("steps must be positive, got %d", e.Steps)
		}
		if e.Interval.Millis() <= 0 {
			return fmt.Errorf("interval must be at least 1ms, got %s", e.Interval)
		}
		return validateFinitePositive("max_power", e.MaxPower)
	default:
		return fmt.Errorf("unknown energy type %q; valid: constant, function, trace, random", e.Type)
	}
}

// Curve converts the spec to a sim.Sinusoid in simulation time units.
func (s *SinusoidSpec) Curve() sim.Sinusoid {
	return sim.Sinusoid{
		Min:        s.Min,
		Max:        s.Max,
		Period:     float64(s.Period.Millis()),
		PhaseShift: s.PhaseShift,
	}
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}
