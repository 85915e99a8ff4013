// Package energytrace reads time-indexed energy traces (supply, carbon
// intensity, host demand) from CSV files and caches the resulting fragment
// sequences so that every file is parsed once per process.
package energytrace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inference-sim/power-sim/sim"
)

// Column names the value column read from a trace file.
type Column string

const (
	ColumnEnergySupply    Column = "energy_supply"    // watts
	ColumnCarbonIntensity Column = "carbon_intensity" // gCO2/kWh
	ColumnPowerDemand     Column = "power_demand"     // watts
)

// TimestampColumn is the mandatory time column. Values are epoch
// milliseconds or RFC3339 timestamps.
const TimestampColumn = "timestamp"

// validColumns maps accepted value column names.
var validColumns = map[Column]bool{
	ColumnEnergySupply:    true,
	ColumnCarbonIntensity: true,
	ColumnPowerDemand:     true,
}

// IsValidColumn returns true if name is a recognized value column.
func IsValidColumn(name string) bool {
	return validColumns[Column(name)]
}

// LoadSamples reads the timestamp column and the given value column of a
// CSV trace file. Rows keep file order; sorting happens in sim.BuildFragments.
func LoadSamples(path string, column Column) ([]sim.Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	samples, err := ReadSamples(file, column)
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", path, err)
	}
	return samples, nil
}

// ReadSamples parses a CSV trace with a header row from r.
func ReadSamples(r io.Reader, column Column) ([]sim.Sample, error) {
	if !validColumns[column] {
		return nil, fmt.Errorf("unknown trace column %q; valid: energy_supply, carbon_intensity, power_demand", column)
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty trace: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	tsIdx, valIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case TimestampColumn:
			tsIdx = i
		case string(column):
			valIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("CSV header has no %q column", TimestampColumn)
	}
	if valIdx < 0 {
		return nil, fmt.Errorf("CSV header has no %q column", column)
	}

	var samples []sim.Sample
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		ts, err := parseTimestamp(row[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[valIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing %s: %w", line, column, err)
		}
		samples = append(samples, sim.Sample{Timestamp: ts, Value: v})
	}
	return samples, nil
}

// parseTimestamp accepts epoch milliseconds or RFC3339.
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("parsing timestamp %q: expected epoch milliseconds or RFC3339", s)
	}
	return t.UnixMilli(), nil
}
