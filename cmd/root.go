package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/power-sim/sim/energytrace"
	"github.com/inference-sim/power-sim/sim/record"
	"github.com/inference-sim/power-sim/sim/topology"
)

var (
	// CLI flags shared by run and sweep
	topologyPath string        // Path to the topology YAML file
	horizon      time.Duration // Simulation horizon; 0 uses the topology's horizon
	startTime    int64         // Epoch ms of simulation time 0
	seed         int64         // Seed for random supply profiles
	logLevel     string        // Log verbosity level
	recordLevel  string        // Per-evaluation record level

	// run only
	recordsPath string // Where to write per-evaluation records as JSON
	metricsPath string // Where to write Prometheus metrics in text format
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "power-sim",
	Short: "Discrete-event simulator for datacenter power supply",
}

// runCmd provisions a topology, runs it and prints the JSON summary
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the power simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if !record.IsValidLevel(recordLevel) {
			logrus.Fatalf("Unknown record level %q. Valid: none, steps", recordLevel)
		}

		topo, err := topology.LoadTopology(topologyPath)
		if err != nil {
			logrus.Fatalf("Failed to load topology: %v", err)
		}
		applyOverrides(cmd, topo)

		logrus.Infof("Starting simulation of %s with %d clusters, seed=%d, start_time=%d",
			topologyPath, len(topo.Clusters), topo.Seed, topo.StartTime)
		wallStart := time.Now()

		out, err := simulate(context.Background(), topo, energytrace.NewCache(), runOptions{
			Horizon:     horizon,
			RecordLevel: record.Level(recordLevel),
		})
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := out.Summary.WriteJSON(os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
		if recordsPath != "" {
			if err := writeRecords(recordsPath, out.Log); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if metricsPath != "" {
			if err := out.Exporter.WriteToTextfile(metricsPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		logrus.Infof("Simulation complete in %s.", time.Since(wallStart))
	},
}

// validateCmd loads a topology and checks every power source without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a topology file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		topo, err := topology.LoadTopology(topologyPath)
		if err != nil {
			logrus.Fatalf("Failed to load topology: %v", err)
		}
		if err := topo.Validate(); err != nil {
			logrus.Fatalf("Invalid topology: %v", err)
		}
		bad := 0
		for i := range topo.Clusters {
			c := &topo.Clusters[i]
			if err := c.PowerSource.Validate(); err != nil {
				logrus.Warnf("cluster %q will be skipped: %v", c.Name, err)
				bad++
			}
		}
		if bad == len(topo.Clusters) {
			logrus.Fatalf("No cluster has a usable power source")
		}
		logrus.Infof("Topology %s is valid (%d clusters, %d with defective power sources)", topologyPath, len(topo.Clusters), bad)
	},
}

// setLogLevel applies the --log flag.
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyOverrides copies explicitly set CLI flags over the topology's values.
func applyOverrides(cmd *cobra.Command, topo *topology.Topology) {
	if cmd.Flags().Changed("seed") {
		topo.Seed = seed
	}
	if cmd.Flags().Changed("start-time") {
		topo.StartTime = startTime
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&topologyPath, "topology", "", "Path to topology YAML file")
	runCmd.Flags().DurationVar(&horizon, "horizon", 0, "Simulation horizon, e.g. 24h (0 = topology horizon, else 24h)")
	runCmd.Flags().Int64Var(&startTime, "start-time", 0, "Epoch ms of simulation time 0 (overrides the topology)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random supply profiles (overrides the topology)")
	runCmd.Flags().StringVar(&recordLevel, "record-level", string(record.LevelSteps), "Per-evaluation records: none, steps")
	runCmd.Flags().StringVar(&recordsPath, "records", "", "Write per-evaluation records as JSON to this file")
	runCmd.Flags().StringVar(&metricsPath, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	_ = runCmd.MarkFlagRequired("topology")

	validateCmd.Flags().StringVar(&topologyPath, "topology", "", "Path to topology YAML file")
	_ = validateCmd.MarkFlagRequired("topology")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
