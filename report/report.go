// Composition of the text views: the aggregate cluster overview, the current
// user's jobs, per-user usage breakdowns, and the flat squeue-like listing.

package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"slurmq/hostlist"
	"slurmq/jobs"
	"slurmq/nodes"
	"slurmq/table"
)

// How far back a finished job still shows up under "past jobs".
const recentWindow = time.Hour

type Options struct {
	// Section selectors; the CLI profiles expand into these.
	Overview   bool
	OwnJobs    bool
	Usage      bool
	AllRunning bool
	AllPending bool

	// Hide the current user's own jobs from the all-user listings when the own-jobs
	// section already shows them.
	ExcludeOwn bool

	// Field/format spec for the listings; "" means the built-in defaults.
	Fmt string

	CurrentUser string
	Now         time.Time
}

// NeedsJobData is true if any selected section consumes job data; a run showing
// only the node table need not query the job queue at all.
func (opts *Options) NeedsJobData() bool {
	return opts.Overview || opts.OwnJobs || opts.Usage || opts.AllRunning || opts.AllPending
}

// Print renders the selected sections in order.  The node set is needed only for
// the overview and may be nil otherwise.
func Print(out io.Writer, js *jobs.JobSet, ns *nodes.NodeSet, opts Options) error {
	formatters := jobFormatters(opts.Now)
	if opts.Overview {
		printOverview(out, js, ns)
		fmt.Fprintln(out)
	}
	if opts.OwnJobs {
		if err := printOwnJobs(out, js, formatters, opts); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if opts.Usage {
		printUsage(out, js)
		fmt.Fprintln(out)
		printPendingUsage(out, js)
		fmt.Fprintln(out)
	}
	if opts.AllRunning {
		fmt.Fprintln(out, "Running jobs, all users:")
		xs := js.Running()
		if opts.ExcludeOwn {
			xs = excludeUser(xs, opts.CurrentUser)
		}
		if err := printJobs(out, xs, formatters, "running", opts.Fmt); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if opts.AllPending {
		fmt.Fprintln(out, "Pending jobs, all users:")
		xs := js.Pending()
		if opts.ExcludeOwn {
			xs = excludeUser(xs, opts.CurrentUser)
		}
		if err := printJobs(out, xs, formatters, "pending", opts.Fmt); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func excludeUser(xs []*jobs.Job, user string) []*jobs.Job {
	ys := make([]*jobs.Job, 0, len(xs))
	for _, j := range xs {
		if j.User != user {
			ys = append(ys, j)
		}
	}
	return ys
}

func printJobs(
	out io.Writer,
	xs []*jobs.Job,
	formatters map[string]table.Formatter[*jobs.Job],
	defaults, fmtOpt string,
) error {
	fields, fopts, err := table.ParseFormatSpec(defaults, fmtOpt, formatters, jobAliases)
	if err != nil {
		return err
	}
	table.FormatData(out, fields, formatters, fopts, xs)
	return nil
}

// The cluster overview: free GPU counts and node availability.

func printOverview(out io.Writer, js *jobs.JobSet, ns *nodes.NodeSet) {
	free, freePublic := 0, 0
	available := make([]string, 0)
	unavailable := make([]string, 0)
	for _, n := range ns.Nodes {
		if n.Unavailable {
			unavailable = append(unavailable, fmt.Sprintf("%s (%s)", n.Name, n.State))
			continue
		}
		nodeFree := n.Gpus - js.GpusOnNode(n.Name)
		if nodeFree < 0 {
			nodeFree = 0
		}
		free += nodeFree
		if n.Public {
			freePublic += nodeFree
		}
		available = append(available, fmt.Sprintf("%s (%d/%d)", n.Name, nodeFree, n.Gpus))
	}
	fmt.Fprintf(out, "Free GPUs: %d / %d (%d are public GPUs)\n", free, ns.OnlineGpus, freePublic)
	fmt.Fprintf(out, "Available nodes: %s\n", joinOrNone(available))
	if len(unavailable) > 0 {
		fmt.Fprintf(out, "Unavailable nodes: %s\n", joinOrNone(unavailable))
	} else {
		fmt.Fprintln(out, "All nodes are up and running.")
	}
}

func joinOrNone(xs []string) string {
	if len(xs) == 0 {
		return "none"
	}
	s := xs[0]
	for _, x := range xs[1:] {
		s += ", " + x
	}
	return s
}

// The current user's running, pending and recently finished jobs.

func printOwnJobs(
	out io.Writer,
	js *jobs.JobSet,
	formatters map[string]table.Formatter[*jobs.Job],
	opts Options,
) error {
	running := js.UserJobs(opts.CurrentUser, (*jobs.Job).Running)
	if len(running) > 0 {
		fmt.Fprintf(out, "My running jobs (%d):\n", len(running))
		if err := printJobs(out, running, formatters, "running", ""); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, "No running jobs of the current user.")
	}

	pending := js.UserJobs(opts.CurrentUser, (*jobs.Job).Pending)
	if len(pending) > 0 {
		fmt.Fprintf(out, "\nMy pending jobs (%d):\n", len(pending))
		if err := printJobs(out, pending, formatters, "pending", ""); err != nil {
			return err
		}
	}

	past := make([]*jobs.Job, 0)
	for _, j := range js.UserJobs(opts.CurrentUser, (*jobs.Job).Finished) {
		if j.RecentlyFinished(opts.Now, recentWindow) {
			past = append(past, j)
		}
	}
	if len(past) > 0 {
		fmt.Fprintf(out, "\nMy past jobs (%d):\n", len(past))
		if err := printJobs(out, past, formatters, "past", ""); err != nil {
			return err
		}
	}
	return nil
}

// Per-user breakdowns: who holds GPUs now, and who is asking for them.

func printUsage(out io.Writer, js *jobs.JobSet) {
	fmt.Fprintln(out, "GPU usage per user (running jobs):")
	for _, u := range js.UsageByUser() {
		if u.Gpus == 0 {
			continue
		}
		fmt.Fprintf(out, "%-12s (%s)  %d GPUs in %d jobs\n", u.User, u.QosClass, u.Gpus, u.Jobs)
	}
	byClass := js.GpusByQosClass()
	if len(byClass) > 0 {
		fmt.Fprintln(out)
		for _, class := range classOrder(byClass) {
			fmt.Fprintf(out, "Total %s GPUs in use: %d\n", class, byClass[class])
		}
	}
}

func classOrder(byClass map[string]int) []string {
	xs := make([]string, 0, len(byClass))
	for class := range byClass {
		xs = append(xs, class)
	}
	sort.Strings(xs)
	return xs
}

func printPendingUsage(out io.Writer, js *jobs.JobSet) {
	fmt.Fprintln(out, "GPU requests per user (pending jobs):")
	for _, u := range js.PendingByUser() {
		fmt.Fprintf(out, "%-12s (%s)  %d jobs requesting %d GPUs\n", u.User, u.QosClass, u.Jobs, u.Gpus)
	}
}

// Field formatters for the job listings.  Remaining/elapsed times are relative to
// the report's single timestamp so that one run is internally consistent.

func jobFormatters(now time.Time) map[string]table.Formatter[*jobs.Job] {
	return map[string]table.Formatter[*jobs.Job]{
		"job": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatInt(j.Id, ctx) },
			Help: "Job id",
		},
		"name": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatStringMax30(j.Name, ctx) },
			Help: "Job name",
		},
		"user": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.User, ctx) },
			Help: "Owning user",
		},
		"state": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.State, ctx) },
			Help: "Job state",
		},
		"qos": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.QosClass, ctx) },
			Help: "QOS class",
		},
		"nodes": {
			Fmt: func(j *jobs.Job, ctx table.PrintMods) string {
				return table.FormatStrings(hostlist.Compress(j.Nodes), ctx)
			},
			Help: "Allocated nodes, compressed",
		},
		"gpus": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatIntOrEmpty(j.Gpus, ctx) },
			Help: "Allocated or requested GPUs",
		},
		"gpuidx": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.GpuIndices, ctx) },
			Help: "GPU indices on the node",
		},
		"cpus": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatInt(j.Cpus, ctx) },
			Help: "Allocated or requested CPUs",
		},
		"mem": {
			Fmt: func(j *jobs.Job, ctx table.PrintMods) string {
				if j.MemGB == 0 {
					return ""
				}
				return fmt.Sprintf("%dG", j.MemGB)
			},
			Help: "Allocated memory",
		},
		"priority": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatInt64(j.Priority, ctx) },
			Help: "Scheduling priority",
		},
		"runtime": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.Runtime, ctx) },
			Help: "Time the job has run",
		},
		"timelimit": {
			Fmt:  func(j *jobs.Job, ctx table.PrintMods) string { return table.FormatString(j.TimeLimit, ctx) },
			Help: "Requested time limit",
		},
		"remaining": {
			Fmt: func(j *jobs.Job, ctx table.PrintMods) string {
				return jobs.FormatDelta(j.EndTime, now)
			},
			Help: "Time until the limit is reached",
		},
		"elapsed": {
			Fmt: func(j *jobs.Job, ctx table.PrintMods) string {
				return jobs.FormatDelta(j.EndTime, now)
			},
			Help: "Time since the job ended",
		},
	}
}

// MT: Constant after initialization; immutable
var jobAliases = map[string][]string{
	"running": {"job", "nodes", "gpus", "cpus", "mem", "priority", "runtime", "remaining", "name"},
	"pending": {"job", "user", "qos", "gpus", "cpus", "priority", "timelimit", "name"},
	"past":    {"job", "user", "qos", "state", "runtime", "elapsed"},
	"all":     {"job", "user", "state", "qos", "nodes", "gpus", "cpus", "priority", "runtime", "timelimit", "name"},
}
