// `slurmq` -- display job and node state of a Slurm GPU cluster.
//
// Usage:
//  slurmq [profile] [options]
//
// where the profiles select what is shown:
//  -default
//    Cluster overview, the current user's jobs, and per-user GPU usage.
//  -more
//    Everything -default shows, plus running jobs of all users.
//  -jobs
//    A flat squeue-like listing of all running and pending jobs.
//  -all
//    Everything.
//
// and for finer control there are the section flags -overall, -user, -usage,
// -all-users and -all-users-pending that the profiles expand into.
//
// The data comes from `scontrol show job -d` and `sinfo`, which must be on the
// PATH; a failure to run either is fatal for the run.  For testing and offline
// use, -scontrol-file and -sinfo-file substitute captured output for the live
// commands.  On clusters whose sinfo reports no usable GRES data, -nodes gives
// the per-node GPU counts by hand ("gpu01:8,gpu02:4") and sinfo is not run.
//
// The tool takes a single snapshot and exits; periodic refresh is a job for an
// external wrapper such as watch(1).

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"slurmq/config"
	"slurmq/jobs"
	"slurmq/nodes"
	"slurmq/process"
	"slurmq/report"
	"slurmq/status"
)

const slurmqVersion = "0.1.0"

var (
	profileDefault = flag.Bool("default", false, "Show overview, own jobs and usage")
	profileMore    = flag.Bool("more", false, "Show -default plus all running jobs")
	profileJobs    = flag.Bool("jobs", false, "Show a flat listing of all jobs")
	profileAll     = flag.Bool("all", false, "Show everything")

	sectOverall    = flag.Bool("overall", false, "Show the cluster overview")
	sectUser       = flag.Bool("user", false, "Show the current user's jobs")
	sectUsage      = flag.Bool("usage", false, "Show per-user GPU usage")
	sectAllRunning = flag.Bool("all-users", false, "Show running jobs of all users")
	sectAllPending = flag.Bool("all-users-pending", false, "Show pending jobs of all users")

	showNodes = flag.Bool("show-nodes", false, "Show the per-node table")

	nodeOverrides = flag.String("nodes", "",
		"Manual `name:gpus,...` node list, bypassing sinfo")
	fmtSpec = flag.String("fmt", "",
		"Select job listing `fields,...` and format (fields, aliases, csv, json, noheader)")
	scontrolFile = flag.String("scontrol-file", "",
		"Read `scontrol show job -d` output from this file instead of running it")
	sinfoFile = flag.String("sinfo-file", "",
		"Read sinfo output from this file instead of running it")
	verbose = flag.Bool("v", false, "Verbose diagnostics")
	version = flag.Bool("version", false, "Print program version and exit")
)

func main() {
	flag.Parse()
	if *version {
		fmt.Printf("slurmq version %s\n", slurmqVersion)
		return
	}
	if *verbose {
		status.Default().LowerLevelTo(status.LogLevelInfo)
	}
	if err := slurmq(); err != nil {
		status.Fatal(err.Error())
	}
}

func slurmq() error {
	opts := report.Options{
		Overview:   *sectOverall,
		OwnJobs:    *sectUser,
		Usage:      *sectUsage,
		AllRunning: *sectAllRunning,
		AllPending: *sectAllPending,
	}
	switch {
	case *profileAll:
		opts.Overview = true
		opts.OwnJobs = true
		opts.Usage = true
		opts.AllRunning = true
		opts.AllPending = true
	case *profileJobs:
		opts.OwnJobs = false
		opts.Overview = false
		opts.Usage = false
		opts.AllRunning = true
		opts.AllPending = true
	case *profileMore:
		opts.Overview = true
		opts.OwnJobs = true
		opts.Usage = true
		opts.AllRunning = true
	case *profileDefault:
		opts.Overview = true
		opts.OwnJobs = true
		opts.Usage = true
	}
	if !opts.Overview && !opts.OwnJobs && !opts.Usage && !opts.AllRunning &&
		!opts.AllPending && !*showNodes {
		// Bare invocation acts like -default.
		opts.Overview = true
		opts.OwnJobs = true
		opts.Usage = true
	}
	opts.ExcludeOwn = opts.OwnJobs
	opts.Fmt = *fmtSpec
	opts.CurrentUser = currentUser()
	opts.Now = time.Now()

	cfg := config.Load()
	var runner process.Runner = process.ExecRunner{}
	if *scontrolFile != "" || *sinfoFile != "" {
		fr := make(process.FileRunner)
		if *scontrolFile != "" {
			fr["scontrol"] = *scontrolFile
		}
		if *sinfoFile != "" {
			fr["sinfo"] = *sinfoFile
		}
		runner = fr
	}

	// With -show-nodes alone there is nothing to ask scontrol for.
	var js *jobs.JobSet
	var err error
	if opts.NeedsJobData() {
		js, err = jobs.Collect(runner, cfg)
		if err != nil {
			return err
		}
	}
	var ns *nodes.NodeSet
	if opts.Overview || *showNodes {
		if *nodeOverrides != "" {
			ns, err = nodes.FromOverrides(*nodeOverrides)
		} else {
			ns, err = nodes.Collect(runner, cfg)
		}
		if err != nil {
			return err
		}
	}

	out := os.Stdout
	if *showNodes {
		fmt.Fprint(out, ns.String())
		fmt.Fprintln(out)
	}
	return report.Print(out, js, ns, opts)
}

func currentUser() string {
	if u := os.Getenv("LOGNAME"); u != "" {
		return u
	}
	return os.Getenv("USER")
}
