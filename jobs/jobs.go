// In-memory collection of jobs built from `scontrol show job -d` output.
//
// Each blank-line-delimited record block becomes one immutable Job with typed
// fields for everything the reports consume; the raw record is retained so that
// fields this tool does not understand are still reachable.  Collection order is
// Slurm's reporting order.  There is no caching: every Collect re-queries the
// cluster through the given runner.

package jobs

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"slurmq/config"
	"slurmq/hostlist"
	"slurmq/process"
	"slurmq/records"
	"slurmq/status"
)

const (
	StateRunning = "RUNNING"
	StatePending = "PENDING"
)

type Job struct {
	Id         int
	Name       string
	User       string
	State      string
	Partition  string
	Qos        string
	QosClass   string
	Priority   int64
	Runtime    string
	TimeLimit  string
	SubmitTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	// NodeList is the compressed form as reported; Nodes is its expansion.  A
	// pending job has neither.
	NodeList string
	Nodes    []string

	ReqNodes   int
	Cpus       int
	Gpus       int
	GpuIndices string
	MemGB      int

	// The record the job was built from, for fields not modelled above.
	Raw records.Record

	qosRank int
}

func (j *Job) Running() bool {
	return j.State == StateRunning
}

func (j *Job) Pending() bool {
	return j.State == StatePending
}

// Finished is anything that is no longer in the queue: COMPLETED, FAILED,
// CANCELLED, TIMEOUT and friends.
func (j *Job) Finished() bool {
	return j.State != StateRunning && j.State != StatePending
}

// RecentlyFinished is true for a finished job whose end time lies within the
// window before now.
func (j *Job) RecentlyFinished(now time.Time, window time.Duration) bool {
	if !j.Finished() || j.EndTime.IsZero() {
		return false
	}
	return now.Sub(j.EndTime) < window
}

type JobSet struct {
	cfg  *config.Cluster
	jobs []*Job
}

// Collect runs `scontrol show job -d` through the runner and parses the output.
// A runner failure means the cluster is unreachable and is returned as an error;
// individual malformed records are logged and skipped.
func Collect(runner process.Runner, cfg *config.Cluster) (*JobSet, error) {
	stdout, stderr, err := runner.Run("scontrol", []string{"show", "job", "-d"})
	if err != nil {
		if errs := strings.TrimSpace(stderr); errs != "" {
			return nil, errors.Join(fmt.Errorf("scontrol failed: %s", errs), err)
		}
		return nil, err
	}
	return collect(stdout, cfg), nil
}

func collect(text string, cfg *config.Cluster) *JobSet {
	// "No jobs in the system" is scontrol's empty answer, not a record.
	if strings.TrimSpace(text) == "No jobs in the system" {
		return &JobSet{cfg: cfg}
	}
	js := &JobSet{cfg: cfg}
	for _, r := range records.ParseBlocks(text) {
		j, ok := newJob(r, cfg)
		if !ok {
			status.Warningf("Skipping record with no JobId (%d fields)", r.Fields())
			continue
		}
		js.jobs = append(js.jobs, j)
	}
	status.Infof("Collected %d jobs", len(js.jobs))
	return js
}

var gpuIdxRe = regexp.MustCompile(`\(IDX:([^)]+)\)`)

func newJob(r records.Record, cfg *config.Cluster) (*Job, bool) {
	id, found := r.Int("JobId")
	if !found {
		return nil, false
	}
	j := &Job{
		Id:         id,
		Name:       r.Field("JobName"),
		User:       userName(r.Field("UserId")),
		State:      r.Field("JobState"),
		Partition:  r.Field("Partition"),
		Qos:        r.Field("QOS"),
		Runtime:    r.Field("RunTime"),
		TimeLimit:  r.Field("TimeLimit"),
		SubmitTime: parseSlurmTime(r.Field("SubmitTime")),
		StartTime:  parseSlurmTime(r.Field("StartTime")),
		EndTime:    parseSlurmTime(r.Field("EndTime")),
		Raw:        r,
	}
	j.QosClass, j.qosRank = cfg.QosClass(j.Qos)
	j.Priority, _ = strconv.ParseInt(r.Field("Priority"), 10, 64)
	j.Cpus, _ = r.Int("NumCPUs")
	j.ReqNodes = firstInt(r.Field("NumNodes"))
	if mem, found := r.Int("Mem"); found {
		// The detail line reports the allocated memory in MB.
		j.MemGB = mem / 1024
	}

	if nodeList := r.Field("NodeList"); nodeList != "" && nodeList != "(null)" {
		j.NodeList = nodeList
		names, err := hostlist.Expand(nodeList)
		if err != nil {
			status.Warningf("Job %d: cannot expand node list %s: %s", j.Id, nodeList, err.Error())
		} else {
			j.Nodes = names
		}
	}

	// Allocated GPUs for running jobs; the requested count for pending ones.  The
	// TRES key that counts GPUs is site configuration.
	if j.Running() {
		j.Gpus = tresCount(r.Field("AllocTRES"), cfg.GpuTres)
		if j.Gpus == 0 {
			j.Gpus = tresCount(r.Field("TRES"), cfg.GpuTres)
		}
	} else {
		j.Gpus = tresCount(r.Field("TRES"), cfg.GpuTres)
		if j.Gpus == 0 {
			j.Gpus = tresCount(r.Field("ReqTRES"), cfg.GpuTres)
		}
	}

	// `scontrol -d` detail lines carry the per-node GPU indices, eg
	// "GRES=gpu:a100:2(IDX:0-1)".
	if ms := gpuIdxRe.FindStringSubmatch(r.Field("GRES")); ms != nil {
		j.GpuIndices = ms[1]
	}

	return j, true
}

// userName strips the numeric id from scontrol's "name(uid)" form.
func userName(userId string) string {
	name, _, _ := strings.Cut(userId, "(")
	return name
}

// tresCount extracts one count from a TRES list such as
// "cpu=8,mem=32G,node=1,billing=8,gres/gpu=2".
func tresCount(tres, key string) int {
	for _, f := range strings.Split(tres, ",") {
		k, v, found := strings.Cut(f, "=")
		if found && k == key {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// firstInt parses the leading integer of a value that may be a range ("1-4").
func firstInt(s string) int {
	s, _, _ = strings.Cut(s, "-")
	n, _ := strconv.Atoi(s)
	return n
}

// Slurm prints local time without a zone offset; "Unknown", "N/A" and "None" all
// mean no time.  A zero Time represents those.
func parseSlurmTime(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatDelta renders the distance between t and now as "3d:02h:11m:05s", in
// either direction, or "UNKNOWN" when t is unset.
func FormatDelta(t, now time.Time) string {
	if t.IsZero() {
		return "UNKNOWN"
	}
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	seconds := int((d - time.Duration(minutes)*time.Minute) / time.Second)
	return fmt.Sprintf("%dd:%02dh:%02dm:%02ds", days, hours, minutes, seconds)
}

///////////////////////////////////////////////////////////////////////////////////
//
// Views.  All return fresh slices; the set itself never changes after collection.

// All returns every job in Slurm's reporting order.
func (js *JobSet) All() []*Job {
	return append([]*Job(nil), js.jobs...)
}

func (js *JobSet) ByUser(user string) []*Job {
	return js.selectJobs(func(j *Job) bool { return j.User == user })
}

func (js *JobSet) ByState(state string) []*Job {
	return js.selectJobs(func(j *Job) bool { return j.State == state })
}

// Running returns the running jobs ordered by QOS rank, then by name.
func (js *JobSet) Running() []*Job {
	xs := js.selectJobs((*Job).Running)
	sortByQos(xs)
	return xs
}

// Pending returns the pending jobs, highest scheduling priority first.
func (js *JobSet) Pending() []*Job {
	xs := js.selectJobs((*Job).Pending)
	sort.SliceStable(xs, func(i, k int) bool { return xs[i].Priority > xs[k].Priority })
	return xs
}

// Finished returns the remaining jobs ordered by QOS rank, then by name.
func (js *JobSet) Finished() []*Job {
	xs := js.selectJobs((*Job).Finished)
	sortByQos(xs)
	return xs
}

// UserJobs returns the user's jobs in the given state class, ordered by job id.
func (js *JobSet) UserJobs(user string, class func(*Job) bool) []*Job {
	xs := js.selectJobs(func(j *Job) bool { return j.User == user && class(j) })
	sort.SliceStable(xs, func(i, k int) bool { return xs[i].Id < xs[k].Id })
	return xs
}

func (js *JobSet) selectJobs(keep func(*Job) bool) []*Job {
	xs := make([]*Job, 0)
	for _, j := range js.jobs {
		if keep(j) {
			xs = append(xs, j)
		}
	}
	return xs
}

func sortByQos(xs []*Job) {
	sort.SliceStable(xs, func(i, k int) bool {
		if xs[i].qosRank != xs[k].qosRank {
			return xs[i].qosRank < xs[k].qosRank
		}
		return xs[i].Name < xs[k].Name
	})
}

// Summary counts jobs per state.
func (js *JobSet) Summary() map[string]int {
	counts := make(map[string]int)
	for _, j := range js.jobs {
		counts[j.State]++
	}
	return counts
}

// GpusOnNode sums the GPUs of running jobs attributed to the host.  A multi-node
// job's GPU count is attributed in full to each of its hosts; Slurm does not
// report the per-host split in the TRES data.
func (js *JobSet) GpusOnNode(host string) int {
	gpus := 0
	for _, j := range js.jobs {
		if !j.Running() {
			continue
		}
		for _, n := range j.Nodes {
			if n == host {
				gpus += j.Gpus
				break
			}
		}
	}
	return gpus
}

// Per-user aggregation of running GPU use.

type UserUsage struct {
	User     string
	QosClass string
	Jobs     int
	Gpus     int
}

// UsageByUser aggregates running jobs per user, most GPUs first, ties by name.
// The QOS class shown is that of the user's first running job.
func (js *JobSet) UsageByUser() []UserUsage {
	return js.aggregate((*Job).Running, func(xs []UserUsage) {
		sort.SliceStable(xs, func(i, k int) bool {
			if xs[i].Gpus != xs[k].Gpus {
				return xs[i].Gpus > xs[k].Gpus
			}
			return xs[i].User < xs[k].User
		})
	})
}

// PendingByUser aggregates pending jobs per user, ordered by name.  Gpus is the
// sum of requested GPUs across the user's pending jobs.
func (js *JobSet) PendingByUser() []UserUsage {
	return js.aggregate((*Job).Pending, func(xs []UserUsage) {
		sort.SliceStable(xs, func(i, k int) bool { return xs[i].User < xs[k].User })
	})
}

func (js *JobSet) aggregate(class func(*Job) bool, order func([]UserUsage)) []UserUsage {
	ix := make(map[string]int)
	usage := make([]UserUsage, 0)
	for _, j := range js.jobs {
		if !class(j) {
			continue
		}
		i, found := ix[j.User]
		if !found {
			i = len(usage)
			ix[j.User] = i
			usage = append(usage, UserUsage{User: j.User, QosClass: j.QosClass})
		}
		usage[i].Jobs++
		usage[i].Gpus += j.Gpus
	}
	order(usage)
	return usage
}

// GpusByQosClass sums running-job GPUs per QOS class label.
func (js *JobSet) GpusByQosClass() map[string]int {
	gpus := make(map[string]int)
	for _, j := range js.jobs {
		if j.Running() {
			gpus[j.QosClass] += j.Gpus
		}
	}
	return gpus
}
