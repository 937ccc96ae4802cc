// Site-dependent knobs for interpreting Slurm output.
//
// Which partitions are open to everyone, which node states count as down, which
// TRES key carries the GPU count, and how QOS names rank against each other all
// vary with the Slurm version and the site's configuration.  Built-in defaults
// suit a typical GPU cluster; the optional ini file ~/.slurmq overrides them:
//
//   [cluster]
//   public-partitions = batch,interactive
//   down-states = down,drain,drained
//   gpu-tres = gres/gpu
//
//   [qos]
//   classes = phd,msc
//   deadline-marker = deadline
//
// A malformed or unreadable file is reported and ignored; configuration must never
// make the tool unusable.

package config

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"

	ini "github.com/lars-t-hansen/ini"

	"slurmq/status"
)

type Cluster struct {
	// Partitions not in this list are private and their nodes count as unavailable
	// to the population at large.  Empty means every partition is public.
	PublicPartitions []string

	// Node states that make a node unavailable.  sinfo suffixes states with "*"
	// for unresponsive nodes; entries here are matched with that suffix stripped.
	DownStates []string

	// The AllocTRES/TRES key that counts allocated GPUs.
	GpuTres string

	// QOS class substrings in rank order, most important first.
	QosClasses []string

	// QOS substring marking deadline jobs, which rank ahead of normal jobs of the
	// same class.
	DeadlineMarker string
}

// MT: Constant after initialization
var (
	p               = ini.NewParser()
	clusterSection  = p.AddSection("cluster")
	iPublic         = clusterSection.AddString("public-partitions")
	iDownStates     = clusterSection.AddString("down-states")
	iGpuTres        = clusterSection.AddString("gpu-tres")
	qosSection      = p.AddSection("qos")
	iQosClasses     = qosSection.AddString("classes")
	iDeadlineMarker = qosSection.AddString("deadline-marker")
)

func Default() *Cluster {
	return &Cluster{
		DownStates:     []string{"down", "drain", "draining", "drained", "fail", "failing"},
		GpuTres:        "gres/gpu",
		QosClasses:     []string{"phd", "msc"},
		DeadlineMarker: "deadline",
	}
}

// Load returns the defaults, amended by ~/.slurmq if that exists and parses.
func Load() *Cluster {
	c := Default()
	home := os.Getenv("HOME")
	if home == "" {
		return c
	}
	fn := path.Join(path.Clean(home), ".slurmq")
	input, err := os.Open(fn)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			status.Errorf("Error in trying to open %s: %s", fn, err.Error())
		}
		return c
	}
	defer input.Close()
	if err := c.Read(input); err != nil {
		status.Errorf("Error in trying to parse %s: %s", fn, err.Error())
	}
	return c
}

// Read amends the configuration from ini-format input.
func (c *Cluster) Read(input io.Reader) error {
	store, err := p.Parse(input)
	if err != nil {
		return err
	}
	if iPublic.Present(store) {
		c.PublicPartitions = splitList(iPublic.StringVal(store))
	}
	if iDownStates.Present(store) {
		c.DownStates = splitList(iDownStates.StringVal(store))
	}
	if iGpuTres.Present(store) {
		c.GpuTres = strings.TrimSpace(iGpuTres.StringVal(store))
	}
	if iQosClasses.Present(store) {
		c.QosClasses = splitList(iQosClasses.StringVal(store))
	}
	if iDeadlineMarker.Present(store) {
		c.DeadlineMarker = strings.TrimSpace(iDeadlineMarker.StringVal(store))
	}
	return nil
}

func splitList(s string) []string {
	fields := strings.Split(s, ",")
	xs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			xs = append(xs, f)
		}
	}
	return xs
}

// PublicPartition is true if the partition is open to everyone.  sinfo marks the
// default partition with a trailing "*"; that is not part of the name.
func (c *Cluster) PublicPartition(partition string) bool {
	if len(c.PublicPartitions) == 0 {
		return true
	}
	name := strings.TrimSuffix(partition, "*")
	for _, p := range c.PublicPartitions {
		if p == name {
			return true
		}
	}
	return false
}

// DownState is true if the node state means the node is unavailable.  The "*"
// suffix for unresponsive nodes is ignored, and matching is case-insensitive since
// sinfo's case varies with options and version.
func (c *Cluster) DownState(state string) bool {
	name := strings.ToLower(strings.TrimSuffix(state, "*"))
	for _, s := range c.DownStates {
		if strings.ToLower(s) == name {
			return true
		}
	}
	return false
}

// QosClass returns a compact label and an ordering rank for a QOS name, lower rank
// first: deadline QOSes of a class rank ahead of normal ones, classes rank in
// configuration order, and anything unclassified ranks last as "other".
func (c *Cluster) QosClass(qos string) (label string, rank int) {
	deadline := c.DeadlineMarker != "" && strings.Contains(qos, c.DeadlineMarker)
	for i, class := range c.QosClasses {
		if strings.Contains(qos, class) {
			if deadline {
				return class + "|d", 2*i + 1
			}
			return class + "|n", 2*i + 2
		}
	}
	return "other", 2*len(c.QosClasses) + 1
}
