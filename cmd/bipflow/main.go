// Command bipflow benchmarks max-flow solvers on bipartite networks.
//
// Usage:
//
//	bipflow solve [-config file] <instance>...
//	bipflow bench [-config file] [-workers N] [-report file]... <glob>...
//	bipflow generate -kind hilo|rope|zipf -left N -right N -degree D [-seed S] [-o file]
//	bipflow history [-config file] [-limit N] [-instance name] [-tag t]... [-prune age]
//	bipflow migrate [-config file] up|down|version
//	bipflow cache [-config file] clear [instance]...
//	bipflow algorithms
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bipflow/pkg/apperror"
	"bipflow/pkg/logger"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = []command{
	{"solve", "run every solver on instance files and print name,fifo_ms,hl_ms,dinic_ms", runSolve},
	{"bench", "benchmark instance files concurrently and write reports", runBench},
	{"generate", "write a generated instance", runGenerate},
	{"history", "list recorded benchmark runs, or prune old ones", runHistory},
	{"migrate", "apply, roll back or report the run history schema", runMigrate},
	{"cache", "clear cached benchmark results", runCache},
	{"algorithms", "list the available solvers", runAlgorithms},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		usage(stdout)
		return 0
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		err := cmd.run(ctx, args[1:], stdout)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "bipflow %s: %v\n", name, err)
			return 2
		default:
			logger.Log.Error("Command failed", "command", name, "error", err)
			fmt.Fprintf(stderr, "bipflow %s: %v\n", name, err)
			return apperror.ExitCode(err)
		}
	}

	fmt.Fprintf(stderr, "bipflow: unknown command %q\n\n", name)
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bipflow <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", cmd.name, cmd.summary)
	}
}
