// Package sim provides the energy core of the power simulator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - fragment.go: time-bounded values and the two-pointer Cursor seek
//   - supplier.go: trace-backed and function-backed energy suppliers
//   - battery.go: the Smooth/Hard charge state machine
//   - manager.go: single-source and mixed-source energy composition
//
// # Architecture
//
// The sim package holds the value types and the per-call allocation logic;
// everything that moves time forward lives in sub-packages:
//   - sim/flow/: flow graph of power sources, distributors and hosts, and the
//     event-driven engine that steps it from one fragment boundary to the next
//   - sim/topology/: YAML topology specs
//   - sim/energytrace/: CSV trace ingestion and the trace cache
//   - sim/provision/: wiring a topology into a flow graph
//   - sim/record/: per-evaluation energy records and run summaries
//   - sim/metrics/: Prometheus gauges per power source
//
// # Time and units
//
// Simulation time is int64 milliseconds starting at 0. Traces are indexed by
// absolute epoch milliseconds; suppliers add their start time to convert.
// Power values are float64 watts.
//
// # Variants
//
// Supplier variants (SupplyModel) and manager policies (ManagerPolicy) are
// closed sets. Every switch over them ends in a panic for unhandled values.
package sim
