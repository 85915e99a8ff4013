package flow

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/power-sim/sim"
)

// Engine advances a Graph from one change point to the next.
//
// Each node schedules its own wake-up at the next time its inputs can change
// (fragment boundary or sampling tick). Step pops every wake-up at the
// earliest pending time and propagates in five phases:
//
//  1. hosts recompute demand
//  2. distributors sum host demand upstream
//  3. power sources evaluate their manager, capped at capacity
//  4. distributors split supply across hosts
//  5. hosts read their supply
//
// A node is evaluated at most once per phase, and only when it was woken or
// one of its edges changed during the step.
//
// Thread-safety: NOT thread-safe.
type Engine struct {
	graph  *Graph
	events *EventHeap
	clock  int64
	seq    int64
	steps  int64
}

// NewEngine creates an engine for g and schedules every node at time 0.
// Nodes added to g afterwards are never woken.
func NewEngine(g *Graph) *Engine {
	e := &Engine{graph: g, events: NewEventHeap()}
	g.engine = e
	for _, h := range g.hosts {
		e.schedule(h, 0)
	}
	for _, d := range g.distributors {
		e.schedule(d, 0)
	}
	for _, s := range g.sources {
		e.schedule(s, 0)
	}
	return e
}

// Clock returns the current simulation time.
func (e *Engine) Clock() int64 { return e.clock }

// Steps returns the number of steps taken.
func (e *Engine) Steps() int64 { return e.steps }

// Pending returns the number of queued wake-ups, stale ones included.
func (e *Engine) Pending() int { return e.events.Len() }

// NextTime returns the time of the next pending wake-up, or sim.Never.
func (e *Engine) NextTime() int64 {
	for {
		w, ok := e.events.Peek()
		if !ok {
			return sim.Never
		}
		if e.live(w) {
			return w.time
		}
		e.events.PopNext()
	}
}

// schedule queues a wake-up for n at t unless one is already pending at or before t.
func (e *Engine) schedule(n Node, t int64) {
	b := n.base()
	if t == sim.Never || b.closed || b.wake <= t {
		return
	}
	b.wake = t
	e.seq++
	e.events.Schedule(wakeup{time: t, node: n, seqID: e.seq})
}

// live reports whether w is still the pending wake-up of its node.
func (e *Engine) live(w wakeup) bool {
	b := w.node.base()
	return !b.closed && b.wake == w.time
}

// Step processes every wake-up at the earliest pending time.
// Returns false when nothing is left to process.
func (e *Engine) Step() bool {
	now := e.NextTime()
	if now == sim.Never {
		return false
	}
	woken := 0
	for {
		w, ok := e.events.Peek()
		if !ok || w.time != now {
			break
		}
		e.events.PopNext()
		if !e.live(w) {
			continue
		}
		b := w.node.base()
		b.wake = sim.Never
		b.woken = true
		woken++
	}
	e.clock = now
	e.steps++
	logrus.Debugf("[t %010d] step %d: %d wake-ups", now, e.steps, woken)

	g := e.graph
	for _, h := range g.hosts {
		if h.woken && !h.closed {
			h.updateDemand(now)
		}
	}
	for _, d := range g.distributors {
		if d.woken || d.outputsDirty() {
			d.fanIn()
		}
	}
	for _, s := range g.sources {
		if s.closed {
			continue
		}
		if s.woken || (s.out != nil && s.out.dirty) {
			s.evaluate(now)
			logrus.Debugf("[t %010d] source %s: demand=%.2fW supply=%.2fW clean=%.2fW battery=%.2fW non-clean=%.2fW",
				now, s.name, s.demand, s.supply, s.detail.CleanUsed, s.detail.BatteryDischarge, s.detail.NonCleanUsed)
			e.schedule(s, s.nextChange(now))
		}
	}
	for _, d := range g.distributors {
		if d.woken || d.outputsDirty() || (d.in != nil && d.in.dirty) {
			d.fanOut()
		}
	}
	for _, h := range g.hosts {
		if h.woken || (h.in != nil && h.in.dirty) {
			h.receive()
		}
		if h.woken && !h.closed {
			e.schedule(h, h.nextChange(now))
		}
	}

	for _, edge := range g.edges {
		edge.dirty = false
	}
	for _, h := range g.hosts {
		h.woken = false
	}
	for _, d := range g.distributors {
		d.woken = false
	}
	for _, s := range g.sources {
		s.woken = false
	}
	return true
}

// Run steps until no wake-ups remain or the next one lies beyond horizon.
// With a finite horizon the source counters are then integrated up to
// horizon and the clock is set to it.
func (e *Engine) Run(horizon int64) {
	_ = e.RunContext(context.Background(), horizon)
}

// RunContext is Run with cancellation checked between steps.
func (e *Engine) RunContext(ctx context.Context, horizon int64) error {
	for e.NextTime() <= horizon {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Step() {
			break
		}
	}
	if horizon != sim.Never && horizon > e.clock {
		e.clock = horizon
	}
	if horizon != sim.Never {
		for _, s := range e.graph.sources {
			s.UpdateCounters(e.clock)
		}
	}
	return nil
}
