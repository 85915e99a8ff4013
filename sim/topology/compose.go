package topology

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ComposeTopologies merges the cluster lists of several topologies.
// Seed and start time come from the first topology; the horizon is the longest.
// Cluster names must stay unique across the inputs.
func ComposeTopologies(topos []*Topology) (*Topology, error) {
	if len(topos) == 0 {
		return nil, fmt.Errorf("at least one topology file required")
	}

	merged := &Topology{
		Version:   "1",
		Seed:      topos[0].Seed,
		StartTime: topos[0].StartTime,
	}
	owner := make(map[string]int)
	for i, t := range topos {
		if t.Horizon > merged.Horizon {
			merged.Horizon = t.Horizon
		}
		for _, c := range t.Clusters {
			if j, ok := owner[c.Name]; ok {
				return nil, fmt.Errorf("cluster %q defined in topology %d and %d", c.Name, j, i)
			}
			owner[c.Name] = i
			merged.Clusters = append(merged.Clusters, c)
		}
	}
	return merged, nil
}

// WriteYAML encodes t to w.
func (t *Topology) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encoding topology: %w", err)
	}
	return enc.Close()
}
