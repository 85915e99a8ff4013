package flow

import (
	"gonum.org/v1/gonum/floats"
)

// Distributor fans the demand of its hosts into one request to its supplier
// and splits the granted supply back across the hosts in proportion to their
// demand.
type Distributor struct {
	node

	in   *Edge
	outs []*Edge

	demands []float64 // scratch, one entry per outgoing edge
}

func (d *Distributor) Kind() NodeKind { return KindDistributor }

// Demand returns the aggregated demand last sent upstream.
func (d *Distributor) Demand() float64 {
	if d.in == nil {
		return 0
	}
	return d.in.demand
}

// Outputs returns the distributor's outgoing edges in connection order.
func (d *Distributor) Outputs() []*Edge { return d.outs }

func (d *Distributor) collectDemands() []float64 {
	d.demands = d.demands[:0]
	for _, e := range d.outs {
		d.demands = append(d.demands, e.demand)
	}
	return d.demands
}

func (d *Distributor) outputsDirty() bool {
	for _, e := range d.outs {
		if e.dirty {
			return true
		}
	}
	return false
}

// fanIn pushes the sum of the host demands upstream.
func (d *Distributor) fanIn() {
	if d.in == nil {
		return
	}
	d.in.pushDemand(floats.Sum(d.collectDemands()))
}

// fanOut splits the incoming supply proportionally to the host demands.
// When the supply covers the total demand every host receives its demand.
func (d *Distributor) fanOut() {
	supply := 0.0
	if d.in != nil {
		supply = d.in.supply
	}
	demands := d.collectDemands()
	total := floats.Sum(demands)
	for i, e := range d.outs {
		share := 0.0
		if total > 0 {
			share = supply * demands[i] / total
		}
		e.pushSupply(share)
	}
}
