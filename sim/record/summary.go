package record

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SourceSummary aggregates one power source's counters and records.
// Record-derived fields are zero when recording was disabled.
type SourceSummary struct {
	Counters
	Evaluations       int     `json:"evaluations"`
	PeakDemand        float64 `json:"peak_demand_w"`
	MeanDemand        float64 `json:"mean_demand_w"`
	MeanSupplyRatio   float64 `json:"mean_supply_ratio"`
	FinalBatteryLevel float64 `json:"final_battery_level"`
}

// Summary aggregates a whole run.
type Summary struct {
	Sources    map[string]*SourceSummary `json:"sources"`
	Totals     Counters                  `json:"totals"`
	CleanShare float64                   `json:"clean_share"` // clean energy / total energy
}

// Summarize computes aggregate statistics from a Log and the final counters
// of every power source. Safe for a nil or empty log (record-derived fields
// stay zero).
func Summarize(l *Log, counters map[string]Counters) *Summary {
	s := &Summary{Sources: make(map[string]*SourceSummary)}

	for name, c := range counters {
		s.Sources[name] = &SourceSummary{Counters: c}
		s.Totals.Add(c)
	}
	if s.Totals.TotalEnergy > 0 {
		s.CleanShare = s.Totals.CleanEnergy / s.Totals.TotalEnergy
	}
	if l == nil {
		return s
	}

	for name, records := range l.BySource() {
		ss, ok := s.Sources[name]
		if !ok {
			ss = &SourceSummary{}
			s.Sources[name] = ss
		}
		summarizeRecords(ss, records)
	}
	return s
}

func summarizeRecords(ss *SourceSummary, records []EnergyRecord) {
	if len(records) == 0 {
		return
	}
	demands := make([]float64, len(records))
	ratios := make([]float64, 0, len(records))
	for i, r := range records {
		demands[i] = r.Demand
		if r.Demand > 0 {
			ratios = append(ratios, r.Supply/r.Demand)
		}
	}
	ss.Evaluations = len(records)
	ss.PeakDemand = floats.Max(demands)
	ss.MeanDemand = stat.Mean(demands, nil)
	if len(ratios) > 0 {
		ss.MeanSupplyRatio = stat.Mean(ratios, nil)
	}
	ss.FinalBatteryLevel = records[len(records)-1].BatteryLevel
}

// SourceNames returns the summarized source names in sorted order.
func (s *Summary) SourceNames() []string {
	names := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// WriteJSON writes the collected records as a JSON array.
func (l *Log) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
