package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dws/control-plane/internal/app"
	"github.com/dws/control-plane/internal/confdb"
)

func runDB(ctx context.Context, a *app.App, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "provision":
		fs := flag.NewFlagSet("db provision", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		name := fs.String("name", "", "database name")
		tier := fs.String("tier", "", "tier")
		region := fs.String("region", "", "region")
		provider := fs.String("provider", "", "cloud provider")
		credID := fs.String("credential-id", "", "vault credential id")
		idleMs := fs.Int64("idle-timeout-ms", 0, "idle timeout in ms (0 = default)")
		autoTerm := fs.Bool("auto-terminate", true, "auto-terminate on idle")
		fs.Parse(args)

		res, err := a.Confdb.Provision(ctx, confdb.ProvisionRequest{
			Owner:         *owner,
			Name:          *name,
			Tier:          confdb.Tier(*tier),
			Region:        *region,
			Provider:      *provider,
			CredentialID:  *credID,
			IdleTimeoutMs: *idleMs,
			AutoTerminate: *autoTerm,
		})
		if err != nil {
			return fail(err)
		}
		fmt.Printf("provisioning %s (status=%s)\npassword: %s\n", res.DB.ID, res.DB.Status, res.PlaintextPassword)
		return 0

	case "start":
		return dbLifecycle(ctx, a, args, a.Confdb.Start)

	case "stop":
		return dbLifecycleNoResult(args, func(id, owner string) error { return a.Confdb.Stop(ctx, id, owner) })

	case "terminate":
		return dbLifecycleNoResult(args, func(id, owner string) error { return a.Confdb.Terminate(ctx, id, owner) })

	case "list":
		fs := flag.NewFlagSet("db list", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		fs.Parse(args)
		for _, d := range a.Confdb.List(*owner) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Tier, d.Status, d.Region)
		}
		return 0

	case "stats":
		stats := a.Confdb.GetStats()
		fmt.Printf("total: %d\ntotal cost usd: %.2f\n", stats.TotalCount, stats.TotalCostUsd)
		for tier, n := range stats.ByTier {
			fmt.Printf("tier %s: %d\n", tier, n)
		}
		for region, n := range stats.ByRegion {
			fmt.Printf("region %s: %d\n", region, n)
		}
		return 0

	default:
		usage()
		return 1
	}
}

func dbLifecycle(ctx context.Context, a *app.App, args []string, fn func(ctx context.Context, id, owner string) (confdb.ProvisionResult, error)) int {
	fs := flag.NewFlagSet("db start", flag.ExitOnError)
	owner := fs.String("owner", "", "owning address")
	id := fs.String("id", "", "database id")
	fs.Parse(args)

	res, err := fn(ctx, *id, *owner)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s\t%s\t%s\n", res.DB.ID, res.DB.Status, res.ConnectionString)
	return 0
}

func dbLifecycleNoResult(args []string, fn func(id, owner string) error) int {
	fs := flag.NewFlagSet("db lifecycle", flag.ExitOnError)
	owner := fs.String("owner", "", "owning address")
	id := fs.String("id", "", "database id")
	fs.Parse(args)

	if err := fn(*id, *owner); err != nil {
		return fail(err)
	}
	fmt.Println("ok")
	return 0
}
