// Package record provides per-evaluation energy recording for power sources.
// This package has no dependencies on sim/ or sim/flow/; it stores pure data types.
package record

// Level controls the verbosity of energy recording.
type Level string

const (
	// LevelNone disables per-evaluation records; counters are still summarized.
	LevelNone Level = "none"
	// LevelSteps captures one record per power source evaluation.
	LevelSteps Level = "steps"
)

// validLevels maps accepted record level strings.
var validLevels = map[Level]bool{
	LevelNone:  true,
	LevelSteps: true,
	"":         true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized record level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// EnergyRecord captures one evaluation of a power source.
// Power values are watts, carbon intensities gCO2/kWh, battery level in the
// battery's own unit.
type EnergyRecord struct {
	Source                  string  `json:"source"`
	Clock                   int64   `json:"clock"`
	Demand                  float64 `json:"demand"`
	Supply                  float64 `json:"supply"`
	CleanUsed               float64 `json:"clean_used"`
	NonCleanUsed            float64 `json:"non_clean_used"`
	BatteryDischarge        float64 `json:"battery_discharge"`
	BatteryLevel            float64 `json:"battery_level"`
	CleanCarbonIntensity    float64 `json:"clean_carbon_intensity"`
	NonCleanCarbonIntensity float64 `json:"non_clean_carbon_intensity"`
}

// Counters are the cumulative totals of one power source.
// Energy is in joules, carbon emission in grams.
type Counters struct {
	TotalEnergy    float64 `json:"total_energy_j"`
	CleanEnergy    float64 `json:"clean_energy_j"`
	NonCleanEnergy float64 `json:"non_clean_energy_j"`
	BatteryEnergy  float64 `json:"battery_energy_j"`
	CarbonEmission float64 `json:"carbon_emission_g"`
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.TotalEnergy += o.TotalEnergy
	c.CleanEnergy += o.CleanEnergy
	c.NonCleanEnergy += o.NonCleanEnergy
	c.BatteryEnergy += o.BatteryEnergy
	c.CarbonEmission += o.CarbonEmission
}

// Recorder receives energy records from power sources.
type Recorder interface {
	Record(r EnergyRecord)
}

// Config controls record collection behavior.
type Config struct {
	Level Level
}

// Log collects energy records during a simulation run.
// It implements Recorder.
type Log struct {
	Config  Config
	Records []EnergyRecord
}

// NewLog creates a Log ready for recording.
func NewLog(config Config) *Log {
	return &Log{
		Config:  config,
		Records: make([]EnergyRecord, 0),
	}
}

// Record appends r unless recording is disabled.
func (l *Log) Record(r EnergyRecord) {
	if l.Config.Level != LevelSteps {
		return
	}
	l.Records = append(l.Records, r)
}

// BySource groups the records by power source, preserving order.
func (l *Log) BySource() map[string][]EnergyRecord {
	out := make(map[string][]EnergyRecord)
	for _, r := range l.Records {
		out[r.Source] = append(out[r.Source], r)
	}
	return out
}
