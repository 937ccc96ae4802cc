// In-memory collection of compute nodes built from sinfo output.
//
// Collection runs `sinfo -N -h -o %N||%T||%P||%C||%G`: one line per node with
// name, state, partition, the A/I/O/T cpu breakdown, and the GRES string.  Nodes
// are immutable after creation.  For clusters whose sinfo carries no usable GRES
// data there is FromOverrides, which builds the set from "name:gpus" pairs given
// on the command line.

package nodes

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"slurmq/config"
	"slurmq/process"
	"slurmq/status"
)

// One GPU type on a node: count, model name, per-GPU memory.
type GpuKind struct {
	Type  string
	Count int
	MemGB int
}

type Node struct {
	Name      string
	State     string
	Partition string
	CpusAlloc int
	CpusTotal int

	// Total GPUs across kinds, and a compact description such as "2xa100(80G)".
	Gpus    int
	GpuDesc string
	Kinds   []GpuKind

	Public      bool
	Unavailable bool
}

func (n *Node) String() string {
	availability := "public"
	if !n.Public {
		availability = "private"
	}
	desc := n.GpuDesc
	if desc == "" {
		desc = "none"
	}
	return fmt.Sprintf("%-25s%-25s%-20s%-12s%-10s",
		"Name: "+n.Name,
		"GPUs: "+desc,
		"State: "+n.State,
		n.Partition,
		availability,
	)
}

type NodeSet struct {
	// Available nodes first, then descending GPU count, GPU description, name.
	Nodes []*Node

	TotalGpus        int
	OnlineGpus       int
	PublicOnlineGpus int
}

// Collect runs sinfo through the runner and parses the output.  A runner failure
// is returned as an error; malformed lines are logged and skipped, and a node
// whose GRES cannot be parsed keeps zero GPUs rather than aborting the run.
func Collect(runner process.Runner, cfg *config.Cluster) (*NodeSet, error) {
	stdout, stderr, err := runner.Run("sinfo", []string{"-N", "-h", "-o", "%N||%T||%P||%C||%G"})
	if err != nil {
		if errs := strings.TrimSpace(stderr); errs != "" {
			return nil, errors.Join(fmt.Errorf("sinfo failed: %s", errs), err)
		}
		return nil, err
	}
	return collect(stdout, cfg), nil
}

func collect(text string, cfg *config.Cluster) *NodeSet {
	ns := make([]*Node, 0)
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := parseNode(line, cfg)
		if err != nil {
			status.Warningf("Skipping sinfo line %q: %s", line, err.Error())
			continue
		}
		// With -N a node appears once per partition it belongs to; the first
		// occurrence (its primary partition) wins.
		if seen[n.Name] {
			continue
		}
		seen[n.Name] = true
		ns = append(ns, n)
	}
	status.Infof("Collected %d nodes", len(ns))
	return newNodeSet(ns)
}

// FromOverrides builds a node set from command-line "name:gpus" pairs, for the
// variant lacking sinfo-based discovery.  The nodes are presumed up and public.
func FromOverrides(spec string) (*NodeSet, error) {
	ns := make([]*Node, 0)
	for _, pair := range strings.Split(spec, ",") {
		name, count, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || name == "" {
			return nil, fmt.Errorf("Bad node override %q, expected name:gpus", pair)
		}
		gpus, err := strconv.Atoi(count)
		if err != nil || gpus < 0 {
			return nil, fmt.Errorf("Bad GPU count in node override %q", pair)
		}
		ns = append(ns, &Node{
			Name:    name,
			State:   "unknown",
			Gpus:    gpus,
			GpuDesc: fmt.Sprintf("%dxgpu", gpus),
			Kinds:   []GpuKind{{Type: "gpu", Count: gpus}},
			Public:  true,
		})
	}
	if len(ns) == 0 {
		return nil, errors.New("Empty node override list")
	}
	return newNodeSet(ns), nil
}

func newNodeSet(ns []*Node) *NodeSet {
	sort.SliceStable(ns, func(i, k int) bool {
		a, b := ns[i], ns[k]
		if a.Unavailable != b.Unavailable {
			return !a.Unavailable
		}
		if a.Gpus != b.Gpus {
			return a.Gpus > b.Gpus
		}
		if a.GpuDesc != b.GpuDesc {
			return a.GpuDesc < b.GpuDesc
		}
		return a.Name < b.Name
	})
	set := &NodeSet{Nodes: ns}
	for _, n := range ns {
		set.TotalGpus += n.Gpus
		if !n.Unavailable {
			set.OnlineGpus += n.Gpus
			if n.Public {
				set.PublicOnlineGpus += n.Gpus
			}
		}
	}
	return set
}

func parseNode(line string, cfg *config.Cluster) (*Node, error) {
	fields := strings.Split(line, "||")
	if len(fields) != 5 {
		return nil, fmt.Errorf("expected 5 ||-separated fields, got %d", len(fields))
	}
	name, state, partition, cpus, gres := fields[0], fields[1], fields[2], fields[3], fields[4]
	if name == "" {
		return nil, errors.New("empty node name")
	}
	n := &Node{
		Name:      name,
		State:     state,
		Partition: partition,
		Public:    cfg.PublicPartition(partition),
	}
	// Private nodes are unavailable to the population at large even when up.
	n.Unavailable = cfg.DownState(state) || !n.Public

	// %C is allocated/idle/other/total.
	cpuFields := strings.Split(cpus, "/")
	if len(cpuFields) == 4 {
		n.CpusAlloc, _ = strconv.Atoi(cpuFields[0])
		n.CpusTotal, _ = strconv.Atoi(cpuFields[3])
	} else {
		status.Warningf("Node %s: unexpected CPU field %q", name, cpus)
	}

	kinds, err := parseGres(gres)
	if err != nil {
		status.Warningf("Node %s: cannot parse GRES %q: %s", name, gres, err.Error())
		kinds = nil
	}
	n.Kinds = kinds
	descs := make([]string, 0, len(kinds))
	for _, k := range kinds {
		n.Gpus += k.Count
		if k.MemGB > 0 {
			descs = append(descs, fmt.Sprintf("%dx%s(%dG)", k.Count, k.Type, k.MemGB))
		} else {
			descs = append(descs, fmt.Sprintf("%dx%s", k.Count, k.Type))
		}
	}
	n.GpuDesc = strings.Join(descs, ",")
	return n, nil
}

// parseGres interprets a sinfo GRES string.  The shapes seen in the wild:
//
//   (null)
//   gpu:8
//   gpu:a100:4
//   gpu:a100:4(S:0-63)
//   gpu:rtx:2(S:0-15),gpu:a40:2(S:16-31),gpumem:rtx:no_consume:48G,...
//
// gpumem entries attach per-GPU memory to a gpu entry of the same type; entries
// of other GRES kinds (mps, shard, licenses) are ignored.
func parseGres(gres string) ([]GpuKind, error) {
	if gres == "" || gres == "(null)" {
		return nil, nil
	}
	kinds := make([]GpuKind, 0)
	mem := make(map[string]int)
	for _, entry := range splitOutsideParens(gres) {
		// Socket affinity and index annotations contribute nothing here.
		if i := strings.IndexByte(entry, '('); i >= 0 {
			entry = entry[:i]
		}
		fields := strings.Split(entry, ":")
		switch fields[0] {
		case "gpu":
			switch len(fields) {
			case 2:
				count, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("bad count in %q", entry)
				}
				kinds = append(kinds, GpuKind{Type: "gpu", Count: count})
			case 3:
				count, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, fmt.Errorf("bad count in %q", entry)
				}
				kinds = append(kinds, GpuKind{Type: fields[1], Count: count})
			default:
				return nil, fmt.Errorf("unexpected gpu entry %q", entry)
			}
		case "gpumem":
			// gpumem:<type>:no_consume:<mem>
			if len(fields) < 4 {
				return nil, fmt.Errorf("unexpected gpumem entry %q", entry)
			}
			gb, err := memToGB(fields[3])
			if err != nil {
				return nil, err
			}
			mem[fields[1]] = gb
		}
	}
	for i := range kinds {
		kinds[i].MemGB = mem[kinds[i].Type]
	}
	return kinds, nil
}

// splitOutsideParens splits on commas that are not inside parentheses, since
// socket lists look like "(S:0-1,8-9)".
func splitOutsideParens(s string) []string {
	entries := make([]string, 0)
	depth := 0
	start := 0
	for ix, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				entries = append(entries, s[start:ix])
				start = ix + 1
			}
		}
	}
	return append(entries, s[start:])
}

// memToGB normalizes a memory figure to whole GB, rounding down.
func memToGB(s string) (int, error) {
	switch {
	case strings.HasSuffix(s, "G"):
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("bad memory figure %q", s)
		}
		return n, nil
	case strings.HasSuffix(s, "M"):
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("bad memory figure %q", s)
		}
		return n / 1024, nil
	default:
		return 0, fmt.Errorf("bad memory figure %q", s)
	}
}

// String renders the formatted node table: cluster totals, then one line per
// node, green when available and red when not.
func (set *NodeSet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total GPUs: %d\n", set.TotalGpus)
	fmt.Fprintf(&b, "Total GPUs currently online: %d\n", set.OnlineGpus)
	fmt.Fprintf(&b, "Total public GPUs online: %d\n", set.PublicOnlineGpus)
	b.WriteString("\nNodes:\n")
	for _, n := range set.Nodes {
		if n.Unavailable {
			b.WriteString(color.RedString("%s", n.String()))
		} else {
			b.WriteString(color.GreenString("%s", n.String()))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
