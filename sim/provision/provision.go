// Package provision builds a runnable flow graph from a topology.
//
// Each cluster becomes one power source feeding one distributor that fans out
// to the cluster's hosts. A cluster whose power source cannot be built is
// skipped with a warning; its siblings are still provisioned.
package provision

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/power-sim/sim"
	"github.com/inference-sim/power-sim/sim/energytrace"
	"github.com/inference-sim/power-sim/sim/flow"
	"github.com/inference-sim/power-sim/sim/record"
	"github.com/inference-sim/power-sim/sim/topology"
)

// hostNamespace scopes host UIDs so that the same host name always maps to
// the same UID across runs.
var hostNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("power-sim/host"))

// HostUID returns the deterministic UID of the host with the given node name.
func HostUID(name string) uuid.UUID {
	return uuid.NewSHA1(hostNamespace, []byte(name))
}

// SkippedCluster names a cluster left out of the graph and why.
type SkippedCluster struct {
	Name string
	Err  error
}

// Result is a provisioned simulation instance.
type Result struct {
	Graph  *flow.Graph
	Engine *flow.Engine

	// Sources maps cluster name to its power source.
	Sources  map[string]*flow.PowerSource
	HostUIDs map[string]uuid.UUID
	Skipped  []SkippedCluster

	closed bool
}

// clusterPlan holds everything loaded for a cluster before any node is added,
// so that a failing cluster leaves no trace in the graph.
type clusterPlan struct {
	spec    *topology.ClusterSpec
	source  flow.SourceConfig
	hosts   []flow.HostConfig
	manager string
}

// Provision validates topo and builds its graph and engine.
// Trace files are read through cache; recorder may be nil.
func Provision(topo *topology.Topology, cache *energytrace.Cache, recorder record.Recorder) (*Result, error) {
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(topo.Seed))

	res := &Result{
		Graph:    flow.NewGraph(),
		Sources:  make(map[string]*flow.PowerSource, len(topo.Clusters)),
		HostUIDs: make(map[string]uuid.UUID),
	}
	for i := range topo.Clusters {
		c := &topo.Clusters[i]
		plan, err := planCluster(c, topo.StartTime, cache, rng, recorder)
		if err != nil {
			logrus.Warnf("provision: skipping cluster %q: %v", c.Name, err)
			res.Skipped = append(res.Skipped, SkippedCluster{Name: c.Name, Err: err})
			continue
		}
		if err := res.addCluster(plan); err != nil {
			return nil, fmt.Errorf("clusters[%d]: %w", i, err)
		}
		logrus.Infof("provision: cluster %q with %d hosts, manager=%s", c.Name, len(plan.hosts), plan.manager)
	}
	if len(res.Sources) == 0 {
		return nil, fmt.Errorf("no cluster could be provisioned (%d skipped)", len(res.Skipped))
	}
	res.Engine = flow.NewEngine(res.Graph)
	return res, nil
}

func planCluster(c *topology.ClusterSpec, startTime int64, cache *energytrace.Cache, rng *sim.PartitionedRNG, recorder record.Recorder) (*clusterPlan, error) {
	ps := &c.PowerSource
	manager, err := BuildManager(c.Name, ps, startTime, cache, rng)
	if err != nil {
		return nil, err
	}

	plan := &clusterPlan{spec: c, manager: topology.ManagerNone}
	if manager != nil {
		plan.manager = string(manager.Policy())
	}
	capacity := ps.Capacity
	if capacity == 0 {
		capacity = math.Inf(1)
	}
	plan.source = flow.SourceConfig{
		Name:      c.Name,
		Capacity:  capacity,
		Manager:   manager,
		StartTime: startTime,
		Recorder:  recorder,
	}
	if manager == nil && ps.CarbonTrace != "" {
		carbon, err := loadTrace(cache, ps.CarbonTrace, energytrace.ColumnCarbonIntensity)
		if err != nil {
			return nil, fmt.Errorf("power_source.carbon_trace: %w", err)
		}
		plan.source.Carbon = carbon
	}

	for i := range c.Hosts {
		h := &c.Hosts[i]
		var demand []sim.Fragment
		if h.DemandTrace != "" {
			demand, err = loadTrace(cache, h.DemandTrace, energytrace.ColumnPowerDemand)
			if err != nil {
				return nil, fmt.Errorf("hosts[%d].demand_trace: %w", i, err)
			}
		}
		count := h.HostCount()
		for j := 0; j < count; j++ {
			plan.hosts = append(plan.hosts, flow.HostConfig{
				Name:        hostName(c.Name, h.Name, j, count),
				Demand:      h.Power,
				DemandTrace: demand,
				StartTime:   startTime,
			})
		}
	}
	return plan, nil
}

func hostName(cluster, host string, index, count int) string {
	if count == 1 {
		return cluster + "/" + host
	}
	return fmt.Sprintf("%s/%s-%d", cluster, host, index)
}

// addCluster wires the planned source, distributor and hosts into the graph.
// The source exists before any host edge is added.
func (r *Result) addCluster(p *clusterPlan) error {
	src, err := r.Graph.AddPowerSource(p.source)
	if err != nil {
		return err
	}
	dist, err := r.Graph.AddDistributor(p.spec.Name + "/pdu")
	if err != nil {
		return err
	}
	if _, err := r.Graph.Connect(src, dist); err != nil {
		return err
	}
	for _, hc := range p.hosts {
		uid := HostUID(hc.Name)
		if _, dup := r.HostUIDs[hc.Name]; dup {
			return fmt.Errorf("duplicate host %q", hc.Name)
		}
		host, err := r.Graph.AddHost(hc)
		if err != nil {
			return err
		}
		if _, err := r.Graph.Connect(dist, host); err != nil {
			return err
		}
		r.HostUIDs[hc.Name] = uid
	}
	r.Sources[p.spec.Name] = src
	return nil
}

// Run advances the engine up to horizon (sim.Never for no limit).
func (r *Result) Run(ctx context.Context, horizon int64) error {
	logrus.Infof("provision: running %d sources up to t=%d", len(r.Sources), horizon)
	if err := r.Engine.RunContext(ctx, horizon); err != nil {
		return err
	}
	logrus.Infof("provision: stopped at t=%d after %d steps", r.Engine.Clock(), r.Engine.Steps())
	return nil
}

// Counters returns the cumulative counters of every source by cluster name.
func (r *Result) Counters() map[string]record.Counters {
	out := make(map[string]record.Counters, len(r.Sources))
	for name, s := range r.Sources {
		out[name] = s.Counters()
	}
	return out
}

// Close tears down every host and source exactly once.
func (r *Result) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.Graph.Close()
	logrus.Debugf("provision: closed %d sources and %d hosts", len(r.Graph.Sources()), len(r.Graph.Hosts()))
}

// Closed reports whether Close has been called.
func (r *Result) Closed() bool { return r.closed }
