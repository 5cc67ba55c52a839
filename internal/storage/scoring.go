package storage

import (
	"fmt"
	"math"
	"time"
)

// normalize turns raw bucket sums into an overall score in [0, 10000]
// (spec §4.D): iops weight 0.3 over a 2000 ceiling, throughput weight 0.4
// over a 200 ceiling, latency weight 0.3 inverted over a 10ms scale.
func normalize(iops IOPSBucket, tp ThroughputBucket, lat LatencyBucket) int {
	iopsScore := clamp01(iops.Sum() / 2000)
	tpScore := clamp01(tp.Sum() / 200)
	latScore := clamp01(math.Max(0, 100-lat.Average()/10*100) / 100)

	overall := iopsScore*0.3 + tpScore*0.4 + latScore*0.3
	return int(math.Round(overall * 10000))
}

// normalizeIPFS scores the IPFS-specific bucket on its own scale: pinning
// throughput and peer count count positively, resolution/retrieval latency
// negatively, each capped to [0,1] before weighting.
func normalizeIPFS(b IPFSBucket) int {
	pinScore := clamp01(b.PinningSpeedMBps / 25)
	resolveScore := clamp01(math.Max(0, 200-b.CidResolutionLatencyMs) / 200)
	retrieveScore := clamp01(math.Max(0, 1000-b.RetrievalTimeMs) / 1000)
	peerScore := clamp01(float64(b.SwarmPeerCount) / 200)

	overall := pinScore*0.3 + resolveScore*0.25 + retrieveScore*0.25 + peerScore*0.2
	return int(math.Round(overall * 10000))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// deviationPercent is |claim-observed|/claim as a percent (spec §4.D). A
// claimed value of 0 means no claim was made and no deviation is charged.
func deviationPercent(claimed, observed float64) float64 {
	if claimed <= 0 {
		return 0
	}
	return math.Abs(claimed-observed) / claimed * 100
}

// providerDeviationPercent is the mean of the per-dimension deviation across
// IOPS, throughput, and capacity (spec §4.D). Capacity is self-reported at
// registration and not independently re-measured by a benchmark run, so its
// deviation is always 0 here; see DESIGN.md.
func providerDeviationPercent(p Provider, result BenchmarkResult) float64 {
	iopsDev := deviationPercent(float64(p.ClaimedIops), result.IOPS.Sum()/5)
	tpDev := deviationPercent(float64(p.ClaimedThroughputMbps), result.Throughput.Sum()/4)
	capacityDev := 0.0
	return (iopsDev + tpDev + capacityDev) / 3
}

// applyBenchmark folds a new result into the running reputation per spec
// §3/§4.D: score is in [0,100] (init 50); deviation < warnPct passes and
// nudges score up by 5; < failPct still passes but costs 2; otherwise the
// run fails and costs 15, with a `deviation_<pct>%_at_<ts>` flag appended.
// The spec leaves "slashing" semantics beyond flagging as an open question
// (§9); at >= slashPct this still costs the same 15 as any other fail and
// carries the same `deviation_` flag prefix, distinguishable only by the
// magnitude recorded in the flag itself.
func applyBenchmark(rep Reputation, p Provider, result BenchmarkResult, opts Options, now time.Time) Reputation {
	dev := providerDeviationPercent(p, result)

	rep.ProviderID = p.ID
	rep.BenchmarkCount++
	rep.LastBenchmarkAt = now
	rep.LastDeviationPercent = dev

	switch {
	case dev < opts.WarnDeviationPercent:
		rep.PassCount++
		rep.Score = clampScore(rep.Score + 5)
	case dev < opts.FailDeviationPercent:
		rep.PassCount++
		rep.Score = clampScore(rep.Score - 2)
		rep.Flags = appendFlag(rep.Flags, fmt.Sprintf("deviation_%.0f%%_at_%s", dev, now.Format(time.RFC3339)))
	case dev < opts.SlashDeviationPercent:
		rep.FailCount++
		rep.Score = clampScore(rep.Score - 15)
		rep.Flags = appendFlag(rep.Flags, fmt.Sprintf("deviation_%.0f%%_at_%s", dev, now.Format(time.RFC3339)))
	default:
		rep.FailCount++
		rep.Score = clampScore(rep.Score - 15)
		rep.Flags = appendFlag(rep.Flags, fmt.Sprintf("deviation_%.0f%%_at_%s", dev, now.Format(time.RFC3339)))
	}

	if rep.BenchmarkCount > 0 {
		rep.UptimePercent = float64(rep.PassCount) / float64(rep.BenchmarkCount) * 100
	}
	return rep
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func appendFlag(flags []string, flag string) []string {
	const maxFlags = 20
	flags = append(flags, flag)
	if len(flags) > maxFlags {
		flags = flags[len(flags)-maxFlags:]
	}
	return flags
}

// scheduleInterval picks the next-benchmark cadence for a provider's current
// reputation score (spec §4.D: lower reputation is rechecked more often).
func scheduleInterval(score int, opts Options) time.Duration {
	switch {
	case score < 30:
		return opts.LowReputationInterval
	case score < 70:
		return opts.MediumReputationInterval
	default:
		return opts.HighReputationInterval
	}
}
