// Package metrics exports the state of power sources as Prometheus metrics.
// Every Exporter owns its registry so that concurrent runs do not share series.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inference-sim/power-sim/sim/flow"
)

// Energy kind label values.
const (
	KindTotal    = "total"
	KindClean    = "clean"
	KindNonClean = "non_clean"
	KindBattery  = "battery"
)

// Exporter holds the metric vectors of one simulation run.
type Exporter struct {
	registry *prometheus.Registry

	energy       *prometheus.GaugeVec
	carbon       *prometheus.GaugeVec
	batteryLevel *prometheus.GaugeVec
	supply       *prometheus.GaugeVec
	demand       *prometheus.GaugeVec
	intensity    *prometheus.GaugeVec
	clock        prometheus.Gauge
	steps        prometheus.Gauge
	observations prometheus.Counter
}

// NewExporter creates an exporter with a fresh registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Exporter{
		registry: reg,
		energy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_energy_joules",
			Help: "Cumulative energy supplied by a power source, by energy kind.",
		}, []string{"source", "kind"}),
		carbon: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_carbon_grams",
			Help: "Cumulative carbon emission of a power source.",
		}, []string{"source"}),
		batteryLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_battery_level",
			Help: "Charge level of the battery behind a managed power source.",
		}, []string{"source"}),
		supply: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_supply_watts",
			Help: "Power currently supplied by a power source.",
		}, []string{"source"}),
		demand: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_demand_watts",
			Help: "Power currently demanded from a power source.",
		}, []string{"source"}),
		intensity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_sim_source_carbon_intensity",
			Help: "Carbon intensity (gCO2/kWh) of the non-clean power currently supplied.",
		}, []string{"source"}),
		clock: factory.NewGauge(prometheus.GaugeOpts{
			Name: "power_sim_engine_clock_ms",
			Help: "Simulation time reached by the engine.",
		}),
		steps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "power_sim_engine_steps",
			Help: "Engine steps taken.",
		}),
		observations: factory.NewCounter(prometheus.CounterOpts{
			Name: "power_sim_observations_total",
			Help: "Number of times the exporter sampled the simulation.",
		}),
	}
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe copies the current state of every source and of the engine into
// the metric vectors. sources is keyed by the label value to use.
func (e *Exporter) Observe(sources map[string]*flow.PowerSource, engine *flow.Engine) {
	for name, s := range sources {
		c := s.Counters()
		e.energy.WithLabelValues(name, KindTotal).Set(c.TotalEnergy)
		e.energy.WithLabelValues(name, KindClean).Set(c.CleanEnergy)
		e.energy.WithLabelValues(name, KindNonClean).Set(c.NonCleanEnergy)
		e.energy.WithLabelValues(name, KindBattery).Set(c.BatteryEnergy)
		e.carbon.WithLabelValues(name).Set(c.CarbonEmission)
		e.supply.WithLabelValues(name).Set(s.Supply())
		e.demand.WithLabelValues(name).Set(s.Demand())
		e.intensity.WithLabelValues(name).Set(s.CarbonIntensity())
		if m := s.Manager(); m != nil {
			e.batteryLevel.WithLabelValues(name).Set(m.Battery().ChargeLevel())
		}
	}
	if engine != nil {
		e.clock.Set(float64(engine.Clock()))
		e.steps.Set(float64(engine.Steps()))
	}
	e.observations.Inc()
}

// WriteToTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (e *Exporter) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
