// dwsctl is the admin CLI surface for the control plane (spec §6): a
// thin dispatcher over the domain services wired by internal/app, in the
// style of the teacher's single-flag cmd/nightowl entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dws/control-plane/internal/app"
	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: initializing: %v\n", err)
		return 1
	}
	defer a.Close()

	group, args := args[0], args[1:]
	switch group {
	case "daemon":
		a.Logger.Info("dwsctl daemon starting", "node_id", cfg.SwarmNodeID)
		a.RunBackgroundLoops(ctx)
		return 0
	case "credentials":
		return runCredentials(ctx, a, args)
	case "db":
		return runDB(ctx, a, args)
	case "storage":
		return runStorage(ctx, a, args)
	case "swarm":
		return runSwarm(ctx, a, args)
	default:
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: dwsctl <group> <subcommand> [flags]

groups:
  daemon       run the confdb/storage/swarm background loops until signaled
  credentials  store | list | revoke | delete | audit
  db           provision | start | stop | terminate | list | stats
  storage      register | benchmark | rank | stats
  swarm        register-peer | register-content | stats | content`)
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return apierr.ExitCode(err)
}
