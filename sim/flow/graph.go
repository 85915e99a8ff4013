package flow

import (
	"fmt"

	"github.com/inference-sim/power-sim/sim"
)

// NodeKind is the closed set of flow graph node variants.
type NodeKind string

const (
	KindPowerSource NodeKind = "PowerSource"
	KindDistributor NodeKind = "Distributor"
	KindHost        NodeKind = "Host"
)

// Node is a vertex of the flow graph.
type Node interface {
	Name() string
	Kind() NodeKind
	base() *node
}

// node holds the bookkeeping shared by every node variant.
type node struct {
	name   string
	graph  *Graph
	wake   int64 // time of the pending wake-up, sim.Never when none
	woken  bool  // set for the duration of one engine step
	closed bool
}

func (n *node) Name() string { return n.name }
func (n *node) base() *node { return n }

// Edge connects a supplier node to a consumer node. Demand flows from the
// consumer to the supplier and supply flows the other way.
type Edge struct {
	supplier Node
	consumer Node
	demand   float64
	supply   float64
	dirty    bool
}

func (e *Edge) Supplier() Node { return e.supplier }
func (e *Edge) Consumer() Node { return e.consumer }
func (e *Edge) Demand() float64 { return e.demand }
func (e *Edge) Supply() float64 { return e.supply }
func (e *Edge) Dirty() bool { return e.dirty }

// pushDemand stores v and marks the edge dirty when the demand changed.
func (e *Edge) pushDemand(v float64) {
	if v != e.demand {
		e.demand = v
		e.dirty = true
	}
}

// pushSupply stores v and marks the edge dirty when the supply changed.
func (e *Edge) pushSupply(v float64) {
	if v != e.supply {
		e.supply = v
		e.dirty = true
	}
}

// Graph is an acyclic network of power sources, distributors and hosts.
// Nodes are evaluated in registration order within each engine phase.
//
// Thread-safety: NOT thread-safe. A graph belongs to a single engine.
type Graph struct {
	sources      []*PowerSource
	distributors []*Distributor
	hosts        []*Host
	edges        []*Edge
	names        map[string]NodeKind

	engine *Engine // set by NewEngine
	closed bool
}

// NewGraph creates an empty flow graph.
func NewGraph() *Graph {
	return &Graph{names: make(map[string]NodeKind)}
}

func (g *Graph) Sources() []*PowerSource { return g.sources }
func (g *Graph) Distributors() []*Distributor { return g.distributors }
func (g *Graph) Hosts() []*Host { return g.hosts }
func (g *Graph) Edges() []*Edge { return g.edges }

// register claims name for a node of kind.
func (g *Graph) register(name string, kind NodeKind) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if existing, ok := g.names[name]; ok {
		return fmt.Errorf("duplicate node name %q (already a %s)", name, existing)
	}
	g.names[name] = kind
	return nil
}

func (g *Graph) newNode(name string) node {
	return node{name: name, graph: g, wake: sim.Never}
}

// AddPowerSource registers a power source built from cfg.
// A negative or NaN capacity panics.
func (g *Graph) AddPowerSource(cfg SourceConfig) (*PowerSource, error) {
	if err := g.register(cfg.Name, KindPowerSource); err != nil {
		return nil, err
	}
	s := newPowerSource(g.newNode(cfg.Name), cfg)
	g.sources = append(g.sources, s)
	return s, nil
}

// AddDistributor registers a distributor.
func (g *Graph) AddDistributor(name string) (*Distributor, error) {
	if err := g.register(name, KindDistributor); err != nil {
		return nil, err
	}
	d := &Distributor{node: g.newNode(name)}
	g.distributors = append(g.distributors, d)
	return d, nil
}

// AddHost registers a host built from cfg.
func (g *Graph) AddHost(cfg HostConfig) (*Host, error) {
	if err := g.register(cfg.Name, KindHost); err != nil {
		return nil, err
	}
	h := newHost(g.newNode(cfg.Name), cfg)
	g.hosts = append(g.hosts, h)
	return h, nil
}

// Connect adds a directed edge from supplier to consumer.
// Accepted pairs: PowerSource→Distributor, PowerSource→Host, Distributor→Host.
// A power source feeds one consumer and every consumer has one supplier,
// so the graph stays acyclic.
func (g *Graph) Connect(supplier, consumer Node) (*Edge, error) {
	if supplier == nil || consumer == nil {
		return nil, fmt.Errorf("connect: nil node")
	}
	if supplier.base().graph != g || consumer.base().graph != g {
		return nil, fmt.Errorf("connect %s → %s: node belongs to another graph", supplier.Name(), consumer.Name())
	}
	e := &Edge{supplier: supplier, consumer: consumer}

	switch c := consumer.(type) {
	case *Distributor:
		if c.in != nil {
			return nil, fmt.Errorf("connect %s → %s: distributor already has a supplier", supplier.Name(), c.Name())
		}
	case *Host:
		if c.in != nil {
			return nil, fmt.Errorf("connect %s → %s: host already has a supplier", supplier.Name(), c.Name())
		}
	default:
		return nil, fmt.Errorf("connect %s → %s: %s cannot consume power", supplier.Name(), consumer.Name(), consumer.Kind())
	}

	switch s := supplier.(type) {
	case *PowerSource:
		if s.out != nil {
			return nil, fmt.Errorf("connect %s → %s: power source already has a consumer", s.Name(), consumer.Name())
		}
		s.out = e
	case *Distributor:
		if _, ok := consumer.(*Host); !ok {
			return nil, fmt.Errorf("connect %s → %s: distributors only feed hosts", s.Name(), consumer.Name())
		}
		s.outs = append(s.outs, e)
	default:
		return nil, fmt.Errorf("connect %s → %s: %s cannot supply power", supplier.Name(), consumer.Name(), supplier.Kind())
	}

	switch c := consumer.(type) {
	case *Distributor:
		c.in = e
	case *Host:
		c.in = e
	}
	g.edges = append(g.edges, e)
	return e, nil
}

// wakeSupplier asks the engine to re-evaluate the supplier of e at the
// current clock, so a demand change made between steps reaches the source.
func (g *Graph) wakeSupplier(e *Edge) {
	if g.closed || g.engine == nil {
		return
	}
	g.engine.schedule(e.supplier, g.engine.clock)
}

// Close closes every host and source. Safe to call more than once.
func (g *Graph) Close() {
	g.closed = true
	for _, h := range g.hosts {
		h.Close()
	}
	for _, s := range g.sources {
		s.Close()
	}
}
