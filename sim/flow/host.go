package flow

import (
	"math"

	"github.com/inference-sim/power-sim/sim"
)

// HostConfig holds the construction parameters of a Host.
// When DemandTrace is non-empty it overrides Demand.
type HostConfig struct {
	Name        string
	Demand      float64 // constant demand in watts
	DemandTrace []sim.Fragment
	StartTime   int64 // absolute time of simulation time 0, for DemandTrace
}

// Host is a leaf consumer that raises a power demand and receives supply.
type Host struct {
	node

	constant  float64
	trace     *sim.Cursor
	startTime int64

	in *Edge

	demand   float64
	received float64
}

func newHost(n node, cfg HostConfig) *Host {
	h := &Host{node: n, constant: math.Max(0, cfg.Demand), startTime: cfg.StartTime}
	if len(cfg.DemandTrace) > 0 {
		h.trace = sim.NewCursor(cfg.DemandTrace)
	}
	return h
}

func (h *Host) Kind() NodeKind { return KindHost }
func (h *Host) Demand() float64 { return h.demand }
func (h *Host) Received() float64 { return h.received }
func (h *Host) Closed() bool { return h.closed }

// Shortfall returns the part of the demand that was not supplied.
func (h *Host) Shortfall() float64 {
	return math.Max(0, h.demand-h.received)
}

// updateDemand computes the demand at now and pushes it upstream.
func (h *Host) updateDemand(now int64) {
	if h.trace != nil {
		if f, changed := h.trace.Seek(now + h.startTime); changed {
			h.demand = math.Max(0, f.Value)
		}
	} else {
		h.demand = h.constant
	}
	if h.in != nil {
		h.in.pushDemand(h.demand)
	}
}

// receive reads the supply granted on the incoming edge.
func (h *Host) receive() {
	if h.in != nil {
		h.received = h.in.supply
	}
}

// nextChange returns the next demand trace boundary after now.
func (h *Host) nextChange(now int64) int64 {
	if h.trace == nil {
		return sim.Never
	}
	end := h.trace.NextBoundary(now + h.startTime)
	if end == math.MaxInt64 {
		return sim.Never
	}
	return end - h.startTime
}

// Close withdraws the host's demand and releases its trace. Between steps
// the upstream node is woken at the current clock so its source stops
// supplying the withdrawn demand. Safe to call more than once.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.trace = nil
	h.demand = 0
	if h.in != nil {
		h.in.pushDemand(0)
		h.graph.wakeSupplier(h.in)
	}
}
