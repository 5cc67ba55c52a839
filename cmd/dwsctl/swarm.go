package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dws/control-plane/internal/app"
	"github.com/dws/control-plane/internal/swarm"
)

func runSwarm(ctx context.Context, a *app.App, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "register-peer":
		fs := flag.NewFlagSet("swarm register-peer", flag.ExitOnError)
		nodeID := fs.String("node-id", "", "peer node id")
		endpoint := fs.String("endpoint", "", "peer endpoint")
		region := fs.String("region", "", "peer region")
		fs.Parse(args)

		err := a.Swarm.RegisterPeer(swarm.Peer{
			NodeID:     *nodeID,
			Endpoint:   *endpoint,
			Region:     *region,
			Reputation: 1000,
			Connected:  true,
		})
		if err != nil {
			return fail(err)
		}
		fmt.Println("registered")
		return 0

	case "register-content":
		fs := flag.NewFlagSet("swarm register-content", flag.ExitOnError)
		cid := fs.String("cid", "", "content id")
		infoHash := fs.String("info-hash", "", "bittorrent info hash")
		size := fs.Int64("size", 0, "content size in bytes")
		tier := fs.String("tier", string(swarm.TierCold), "system|popular|cold")
		fs.Parse(args)

		content, err := a.Swarm.RegisterContent(*cid, *infoHash, *size, swarm.ContentTier(*tier))
		if err != nil {
			return fail(err)
		}
		fmt.Printf("registered %s tier=%s health=%s\n", content.CID, content.Tier, content.Health)
		return 0

	case "stats":
		stats := a.Swarm.Stats()
		fmt.Printf("uploaded=%d downloaded=%d transfers=%d health_score=%.1f\n",
			stats.UploadedBytes, stats.DownloadedBytes, stats.TransferCount, stats.HealthScore)
		return 0

	case "content":
		fs := flag.NewFlagSet("swarm content", flag.ExitOnError)
		fs.Parse(args)
		if fs.NArg() < 1 {
			usage()
			return 1
		}
		cid := fs.Arg(0)

		sources := a.Swarm.FindContentSources(ctx, cid)
		if len(sources) == 0 {
			fmt.Println("no sources found")
			return 4
		}
		for _, src := range sources {
			fmt.Printf("%s\t%s\t%s\n", src.NodeID, src.Region, src.Endpoint)
		}
		return 0

	default:
		usage()
		return 1
	}
}
