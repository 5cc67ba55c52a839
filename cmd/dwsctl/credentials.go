package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dws/control-plane/internal/app"
	"github.com/dws/control-plane/internal/vault"
)

func runCredentials(ctx context.Context, a *app.App, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "store":
		fs := flag.NewFlagSet("credentials store", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		provider := fs.String("provider", "", "cloud provider")
		name := fs.String("name", "", "credential name")
		apiKey := fs.String("api-key", "", "API key")
		apiSecret := fs.String("api-secret", "", "API secret")
		region := fs.String("region", "", "region")
		skipVerify := fs.Bool("skip-verification", false, "skip provider verification")
		fs.Parse(args)

		cred, err := a.Vault.Store(ctx, *owner, vault.StoreRequest{
			Provider:         vault.Provider(*provider),
			Name:             *name,
			APIKey:           *apiKey,
			APISecret:        *apiSecret,
			Region:           *region,
			SkipVerification: *skipVerify,
		})
		if err != nil {
			return fail(err)
		}
		fmt.Printf("stored credential %s (%s, %s)\n", cred.ID, cred.Provider, cred.Status)
		return 0

	case "list":
		fs := flag.NewFlagSet("credentials list", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		fs.Parse(args)

		for _, c := range a.Vault.List(*owner) {
			fmt.Printf("%s\t%s\t%s\t%s\n", c.ID, c.Provider, c.Name, c.Status)
		}
		return 0

	case "revoke":
		fs := flag.NewFlagSet("credentials revoke", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		id := fs.String("id", "", "credential id")
		fs.Parse(args)

		ok, err := a.Vault.Revoke(*id, *owner)
		if err != nil {
			return fail(err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "credential not found")
			return 4
		}
		fmt.Println("revoked")
		return 0

	case "delete":
		fs := flag.NewFlagSet("credentials delete", flag.ExitOnError)
		owner := fs.String("owner", "", "owning address")
		id := fs.String("id", "", "credential id")
		fs.Parse(args)

		ok, err := a.Vault.Delete(*id, *owner)
		if err != nil {
			return fail(err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "credential not found")
			return 4
		}
		fmt.Println("deleted")
		return 0

	case "audit":
		fs := flag.NewFlagSet("credentials audit", flag.ExitOnError)
		owner := fs.String("owner", "", "filter by owner")
		limit := fs.Int("limit", 50, "max entries")
		fs.Parse(args)

		for _, e := range a.Audit.Query(*owner, *limit) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", e.Ts.Format("2006-01-02T15:04:05Z"), e.Action, e.Subject, e.Owner, e.Details)
		}
		return 0

	default:
		usage()
		return 1
	}
}
