package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dws/control-plane/internal/app"
	"github.com/dws/control-plane/internal/storage"
)

func runStorage(ctx context.Context, a *app.App, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "register":
		fs := flag.NewFlagSet("storage register", flag.ExitOnError)
		id := fs.String("id", "", "provider id")
		address := fs.String("address", "", "provider address")
		endpoint := fs.String("endpoint", "", "provider endpoint")
		typ := fs.String("type", "", "block|object|ipfs|hybrid")
		region := fs.String("region", "", "region")
		capacityMb := fs.Int64("claimed-capacity-mb", 0, "claimed capacity (MB)")
		iops := fs.Int64("claimed-iops", 0, "claimed IOPS")
		throughput := fs.Int64("claimed-throughput-mbps", 0, "claimed throughput (MB/s)")
		fs.Parse(args)

		p, err := a.Storage.Register(storage.Provider{
			ID:                    *id,
			Address:               *address,
			Endpoint:              *endpoint,
			Type:                  storage.ProviderType(*typ),
			Region:                *region,
			ClaimedCapacityMb:     *capacityMb,
			ClaimedIops:           *iops,
			ClaimedThroughputMbps: *throughput,
		})
		if err != nil {
			return fail(err)
		}

		// A freshly registered provider gets its first benchmark
		// immediately rather than waiting for the next schedule tick.
		result, err := a.Storage.RunBenchmark(ctx, p.ID)
		if err != nil {
			fmt.Printf("registered %s, but initial benchmark failed: %v\n", p.ID, err)
			return 0
		}
		fmt.Printf("registered %s, initial benchmark score=%d\n", p.ID, result.OverallScore)
		return 0

	case "benchmark":
		fs := flag.NewFlagSet("storage benchmark", flag.ExitOnError)
		id := fs.String("id", "", "provider id")
		fs.Parse(args)

		result, err := a.Storage.RunBenchmark(ctx, *id)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("score=%d integrity=%d attestation=%s\n", result.OverallScore, result.DataIntegrityScore, result.AttestationHash)
		return 0

	case "rank":
		for i, r := range a.Storage.Rank() {
			fmt.Printf("%d. %s\tscore=%d\n", i+1, r.ProviderID, r.Score)
		}
		return 0

	case "stats":
		for _, r := range a.Storage.Rank() {
			fmt.Printf("%s\tscore=%d\tbenchmarks=%d\tpass=%d\tfail=%d\tuptime=%.1f%%\n",
				r.ProviderID, r.Score, r.BenchmarkCount, r.PassCount, r.FailCount, r.UptimePercent)
		}
		return 0

	default:
		usage()
		return 1
	}
}
