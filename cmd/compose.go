package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/power-sim/sim/topology"
)

var composeFromPaths []string

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Merge multiple topologies into one",
	Long:  "Load multiple topology YAML files and merge their cluster lists. Output is written to stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(composeFromPaths) == 0 {
			logrus.Fatalf("at least one --from flag is required")
		}

		var topos []*topology.Topology
		for _, path := range composeFromPaths {
			topo, err := topology.LoadTopology(path)
			if err != nil {
				logrus.Fatalf("Failed to load topology %s: %v", path, err)
			}
			topos = append(topos, topo)
		}

		merged, err := topology.ComposeTopologies(topos)
		if err != nil {
			logrus.Fatalf("Compose failed: %v", err)
		}
		writeTopologyToStdout(merged)
	},
}

// writeTopologyToStdout encodes a Topology as YAML on stdout.
func writeTopologyToStdout(topo *topology.Topology) {
	if err := topo.WriteYAML(os.Stdout); err != nil {
		logrus.Fatalf("YAML marshal failed: %v", err)
	}
}

func init() {
	composeCmd.Flags().StringArrayVar(&composeFromPaths, "from", nil, "Path to topology YAML file (can be repeated)")
	_ = composeCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(composeCmd)
}
