package sim

import (
	"fmt"
	"math"
)

// Never is the wake-up time of something that will not change again.
const Never int64 = math.MaxInt64

// EnergyKind tags a supplier as clean (renewable) or non-clean (grid).
type EnergyKind string

const (
	EnergyClean    EnergyKind = "clean"
	EnergyNonClean EnergyKind = "non_clean"
)

// SupplyModel is the closed set of supplier variants.
type SupplyModel int

const (
	// SupplyTrace reads an energy fragment sequence indexed by absolute time.
	SupplyTrace SupplyModel = iota
	// SupplyFunction evaluates a Sinusoid on an internal clock.
	SupplyFunction
)

func (m SupplyModel) String() string {
	switch m {
	case SupplyTrace:
		return "trace"
	case SupplyFunction:
		return "function"
	}
	return fmt.Sprintf("SupplyModel(%d)", int(m))
}

// SupplyReading is the result of one Supplier.Supply call.
//
// For trace suppliers Power is only meaningful when Changed is true: a query
// that lands in the same energy fragment as the previous one returns
// Power == 0 with Changed == false, and the caller keeps the previous value.
// A zero Power with Changed == true means the supply really is zero.
//
// CarbonChanged is set when the query crossed into a new carbon fragment;
// CarbonIntensity then holds the new intensity.
type SupplyReading struct {
	Power           float64
	Changed         bool
	CarbonChanged   bool
	CarbonIntensity float64
}

// Supplier produces instantaneous supply for one energy kind.
//
// Thread-safety: NOT thread-safe. Owned by a single energy manager.
type Supplier struct {
	kind      EnergyKind
	model     SupplyModel
	startTime int64 // absolute time of simulation time 0

	energy *Cursor // SupplyTrace only
	carbon *Cursor // nil when no carbon trace is attached

	curve    Sinusoid // SupplyFunction only
	clock    int64    // SupplyFunction only: elapsed simulation time
	interval int64    // SupplyFunction only: sampling interval for NextChange
}

// NewTraceSupplier creates a trace-backed supplier. carbon may be empty.
// startTime maps simulation-relative time to absolute trace time.
func NewTraceSupplier(kind EnergyKind, energy []Fragment, carbon []Fragment, startTime int64) *Supplier {
	return &Supplier{
		kind:      kind,
		model:     SupplyTrace,
		startTime: startTime,
		energy:    NewCursor(energy),
		carbon:    carbonCursor(carbon),
	}
}

// NewFunctionSupplier creates a function-backed supplier sampling curve every
// interval milliseconds. A zero interval is only allowed for a flat curve,
// which never needs re-sampling; it panics otherwise.
func NewFunctionSupplier(kind EnergyKind, curve Sinusoid, carbon []Fragment, startTime, interval int64) *Supplier {
	if interval <= 0 && !curve.Flat() {
		panic(fmt.Sprintf("function supplier: non-flat curve needs a positive sampling interval, got %d", interval))
	}
	return &Supplier{
		kind:      kind,
		model:     SupplyFunction,
		startTime: startTime,
		carbon:    carbonCursor(carbon),
		curve:     curve,
		interval:  interval,
	}
}

func carbonCursor(carbon []Fragment) *Cursor {
	if len(carbon) == 0 {
		return nil
	}
	return NewCursor(carbon)
}

// Kind returns the supplier's energy kind.
func (s *Supplier) Kind() EnergyKind { return s.kind }

// Model returns the supplier variant.
func (s *Supplier) Model() SupplyModel { return s.model }

// Clock returns the elapsed time of a function-backed supplier.
func (s *Supplier) Clock() int64 { return s.clock }

// Supply returns the supply for t.
//
// The meaning of t depends on the variant:
//   - SupplyTrace: t is the current simulation time (absolute time minus startTime).
//   - SupplyFunction: t is the time elapsed since the previous call; the
//     internal clock advances by t and the curve is evaluated there.
func (s *Supplier) Supply(t int64) SupplyReading {
	var reading SupplyReading
	var absolute int64
	switch s.model {
	case SupplyTrace:
		absolute = t + s.startTime
		f, changed := s.energy.Seek(absolute)
		if changed {
			reading.Power = f.Value
			reading.Changed = true
		}
	case SupplyFunction:
		s.clock += t
		absolute = s.clock + s.startTime
		reading.Power = s.curve.ValueAt(s.clock)
		reading.Changed = true
	default:
		panic(fmt.Sprintf("unhandled supply model %v", s.model))
	}

	if s.carbon != nil {
		f, changed := s.carbon.Seek(absolute)
		if changed {
			reading.CarbonChanged = true
			reading.CarbonIntensity = f.Value
		}
	}
	return reading
}

// NextChange returns the earliest simulation time after now at which Supply
// may return a different value, or Never.
func (s *Supplier) NextChange(now int64) int64 {
	next := Never
	switch s.model {
	case SupplyTrace:
		next = s.boundary(s.energy, now)
	case SupplyFunction:
		if s.interval > 0 {
			next = now + s.interval
		}
	default:
		panic(fmt.Sprintf("unhandled supply model %v", s.model))
	}
	if s.carbon != nil {
		next = min(next, s.boundary(s.carbon, now))
	}
	return next
}

// boundary converts the absolute end of the fragment covering now back to simulation time.
func (s *Supplier) boundary(c *Cursor, now int64) int64 {
	end := c.NextBoundary(now + s.startTime)
	if end == math.MaxInt64 {
		return Never
	}
	return end - s.startTime
}
