package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/power-sim/sim/energytrace"
	"github.com/inference-sim/power-sim/sim/metrics"
	"github.com/inference-sim/power-sim/sim/provision"
	"github.com/inference-sim/power-sim/sim/record"
	"github.com/inference-sim/power-sim/sim/topology"
)

// defaultHorizon is used when neither the flag nor the topology sets one.
const defaultHorizon = 24 * time.Hour

type runOptions struct {
	Horizon     time.Duration
	RecordLevel record.Level
}

// runOutput is everything one simulated instance produces.
type runOutput struct {
	Summary  *record.Summary
	Log      *record.Log
	Exporter *metrics.Exporter
	Skipped  []provision.SkippedCluster
	Clock    int64
}

// resolveHorizon picks the flag horizon, then the topology's, then the default.
func resolveHorizon(flag time.Duration, topo *topology.Topology) time.Duration {
	if flag > 0 {
		return flag
	}
	if topo.Horizon > 0 {
		return time.Duration(topo.Horizon)
	}
	return defaultHorizon
}

// simulate provisions topo, runs it to the resolved horizon and tears it down.
func simulate(ctx context.Context, topo *topology.Topology, cache *energytrace.Cache, opts runOptions) (*runOutput, error) {
	log := record.NewLog(record.Config{Level: opts.RecordLevel})
	res, err := provision.Provision(topo, cache, log)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	h := resolveHorizon(opts.Horizon, topo)
	if err := res.Run(ctx, h.Milliseconds()); err != nil {
		return nil, fmt.Errorf("run interrupted at t=%d: %w", res.Engine.Clock(), err)
	}

	exp := metrics.NewExporter()
	exp.Observe(res.Sources, res.Engine)
	return &runOutput{
		Summary:  record.Summarize(log, res.Counters()),
		Log:      log,
		Exporter: exp,
		Skipped:  res.Skipped,
		Clock:    res.Engine.Clock(),
	}, nil
}

// writeRecords writes the per-evaluation records to path.
func writeRecords(path string, log *record.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating records file: %w", err)
	}
	defer f.Close()
	if err := log.WriteJSON(f); err != nil {
		return err
	}
	logrus.Infof("Wrote %d records to %s", len(log.Records), path)
	return nil
}
