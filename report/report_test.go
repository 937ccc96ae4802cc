package report

import (
	"strings"
	"testing"
	"time"

	"slurmq/config"
	"slurmq/jobs"
	"slurmq/nodes"
)

// stubRunner returns canned output per program name.
type stubRunner map[string]string

func (sr stubRunner) Run(program string, _ []string) (string, string, error) {
	output, found := sr[program]
	if !found {
		return "", "", &missingProgram{program}
	}
	return output, "", nil
}

type missingProgram struct{ name string }

func (e *missingProgram) Error() string { return "no such program " + e.name }

const scontrolOutput = `JobId=100 JobName=train
   UserId=bob(1001) GroupId=bob(1001)
   Priority=5000 Nice=0 Account=ml QOS=phd_normal
   JobState=RUNNING Reason=None Dependency=(null)
   RunTime=02:00:00 TimeLimit=1-00:00:00 TimeMin=N/A
   SubmitTime=2026-08-30T08:00:00 StartTime=2026-08-30T08:05:00 EndTime=2026-08-31T08:05:00
   Partition=gpu NodeList=alpha
   NumNodes=1 NumCPUs=16 NumTasks=1
   AllocTRES=cpu=16,mem=64G,node=1,billing=16,gres/gpu=3
   Nodes=alpha CPU_IDs=0-15 Mem=65536 GRES=gpu:a100:3(IDX:0-2)

JobId=101 JobName=sweep
   UserId=bob(1001) GroupId=bob(1001)
   Priority=9000 Nice=0 Account=ml QOS=phd_deadline
   JobState=PENDING Reason=Resources Dependency=(null)
   RunTime=00:00:00 TimeLimit=12:00:00 TimeMin=N/A
   SubmitTime=2026-08-30T09:00:00 StartTime=Unknown EndTime=Unknown
   Partition=gpu NodeList=(null)
   NumNodes=1 NumCPUs=8 NumTasks=1
   TRES=cpu=8,mem=32G,node=1,billing=8,gres/gpu=1
`

const sinfoOutput = `alpha||mixed||gpu*||16/48/0/64||gpu:a100:8(S:0-63)
`

func testRunner() stubRunner {
	return stubRunner{"scontrol": scontrolOutput, "sinfo": sinfoOutput}
}

func render(t *testing.T, runner stubRunner, opts Options) string {
	cfg := config.Default()
	js, err := jobs.Collect(runner, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var ns *nodes.NodeSet
	if opts.Overview {
		ns, err = nodes.Collect(runner, cfg)
		if err != nil {
			t.Fatal(err)
		}
	}
	var b strings.Builder
	if err := Print(&b, js, ns, opts); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

func testOptions() Options {
	return Options{
		CurrentUser: "bob",
		Now:         time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local),
	}
}

func TestOverview(t *testing.T) {
	opts := testOptions()
	opts.Overview = true
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "Free GPUs: 5 / 8 (5 are public GPUs)") {
		t.Fatalf("Free GPU line missing:\n%s", got)
	}
	if !strings.Contains(got, "Available nodes: alpha (5/8)") {
		t.Fatalf("Available nodes missing:\n%s", got)
	}
	if !strings.Contains(got, "All nodes are up and running.") {
		t.Fatalf("Node health line missing:\n%s", got)
	}
}

func TestOverviewDownNode(t *testing.T) {
	runner := testRunner()
	runner["sinfo"] = sinfoOutput + "beta||drained*||gpu*||0/0/64/64||gpu:a100:8\n"
	opts := testOptions()
	opts.Overview = true
	got := render(t, runner, opts)
	if !strings.Contains(got, "Unavailable nodes: beta (drained*)") {
		t.Fatalf("Unavailable nodes missing:\n%s", got)
	}
	// The down node's GPUs are not online.
	if !strings.Contains(got, "Free GPUs: 5 / 8") {
		t.Fatalf("Free GPU line wrong:\n%s", got)
	}
}

func TestOwnJobs(t *testing.T) {
	opts := testOptions()
	opts.OwnJobs = true
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "My running jobs (1):") {
		t.Fatalf("Running section missing:\n%s", got)
	}
	if !strings.Contains(got, "My pending jobs (1):") {
		t.Fatalf("Pending section missing:\n%s", got)
	}
	if strings.Contains(got, "My past jobs") {
		t.Fatalf("No past jobs expected:\n%s", got)
	}
	if !strings.Contains(got, "train") || !strings.Contains(got, "sweep") {
		t.Fatalf("Job names missing:\n%s", got)
	}
}

func TestOwnJobsOtherUser(t *testing.T) {
	opts := testOptions()
	opts.OwnJobs = true
	opts.CurrentUser = "mallory"
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "No running jobs of the current user.") {
		t.Fatalf("Empty marker missing:\n%s", got)
	}
}

func TestUsage(t *testing.T) {
	opts := testOptions()
	opts.Usage = true
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "GPU usage per user (running jobs):") {
		t.Fatalf("Usage header missing:\n%s", got)
	}
	if !strings.Contains(got, "3 GPUs in 1 jobs") {
		t.Fatalf("Usage line missing:\n%s", got)
	}
	if !strings.Contains(got, "Total phd|n GPUs in use: 3") {
		t.Fatalf("Class total missing:\n%s", got)
	}
	if !strings.Contains(got, "1 jobs requesting 1 GPUs") {
		t.Fatalf("Pending request line missing:\n%s", got)
	}
}

func TestAllListings(t *testing.T) {
	opts := testOptions()
	opts.AllRunning = true
	opts.AllPending = true
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "Running jobs, all users:") ||
		!strings.Contains(got, "Pending jobs, all users:") {
		t.Fatalf("Listing headers missing:\n%s", got)
	}
	if !strings.Contains(got, "100") || !strings.Contains(got, "101") {
		t.Fatalf("Job rows missing:\n%s", got)
	}
}

func TestExcludeOwn(t *testing.T) {
	opts := testOptions()
	opts.AllRunning = true
	opts.ExcludeOwn = true
	got := render(t, testRunner(), opts)
	// Everything belongs to bob; the listing keeps only its header row.
	if strings.Contains(got, "train") {
		t.Fatalf("Own job not excluded:\n%s", got)
	}
	if !strings.Contains(got, "Running jobs, all users:") {
		t.Fatalf("Listing header missing:\n%s", got)
	}
}

func TestEmptyCluster(t *testing.T) {
	runner := testRunner()
	runner["scontrol"] = "No jobs in the system\n"
	opts := testOptions()
	opts.AllRunning = true
	got := render(t, runner, opts)
	// Header rows only, no error.
	if !strings.Contains(got, "Running jobs, all users:") || !strings.Contains(got, "job") {
		t.Fatalf("Headers missing:\n%s", got)
	}
}

func TestFormatSpec(t *testing.T) {
	opts := testOptions()
	opts.AllRunning = true
	opts.Fmt = "job,user,gpus,csv"
	got := render(t, testRunner(), opts)
	if !strings.Contains(got, "100,bob,3") {
		t.Fatalf("Csv row missing:\n%s", got)
	}
}

func TestNeedsJobData(t *testing.T) {
	opts := Options{}
	if opts.NeedsJobData() {
		t.Fatal("No sections selected")
	}
	for _, set := range []func(*Options){
		func(o *Options) { o.Overview = true },
		func(o *Options) { o.OwnJobs = true },
		func(o *Options) { o.Usage = true },
		func(o *Options) { o.AllRunning = true },
		func(o *Options) { o.AllPending = true },
	} {
		opts := Options{}
		set(&opts)
		if !opts.NeedsJobData() {
			t.Fatalf("Section should need job data: %+v", opts)
		}
	}

	// A node-table-only run passes no job set and must not touch one.
	var b strings.Builder
	if err := Print(&b, nil, nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if b.String() != "" {
		t.Fatalf("Unexpected output %q", b.String())
	}
}

func TestBadFormatSpec(t *testing.T) {
	cfg := config.Default()
	js, err := jobs.Collect(testRunner(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	opts := testOptions()
	opts.AllRunning = true
	opts.Fmt = "bogus"
	var b strings.Builder
	if err := Print(&b, js, nil, opts); err == nil {
		t.Fatal("Expected an error for an unknown field")
	}
}
