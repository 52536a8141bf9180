package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/consigna/consigna/cmd/consigna/cli"
	"github.com/consigna/consigna/internal/app"
)

const jobsUsage = `usage: consigna jobs <command>

commands:
  trigger <name> [-at RFC3339]   enqueue cutoff, outbox or purge
  stats                          show default queue counters
  scheduled [-n size]            list scheduled tasks`

func runJobs(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, jobsUsage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}
	ops, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = ops.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		at := fs.String("at", "", "instant the sweep evaluates cutoffs against (RFC3339)")
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, jobsUsage)
			return 2
		}
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		var stamp time.Time
		if *at != "" {
			stamp, err = time.Parse(time.RFC3339, *at)
			if err != nil {
				fmt.Fprintln(os.Stderr, "invalid -at:", err)
				return 2
			}
		}
		info, err := ops.Trigger(ctx, args[1], stamp)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := ops.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "scheduled":
		fs := flag.NewFlagSet("scheduled", flag.ContinueOnError)
		size := fs.Int("n", 10, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		tasks, err := ops.ListScheduled(ctx, *size)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, t := range tasks {
			fmt.Printf("%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
	default:
		fmt.Fprintln(os.Stderr, jobsUsage)
		return 2
	}
	return 0
}
