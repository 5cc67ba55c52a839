package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApplyBenchmarkSlashBranchUsesDeviationFlagPrefix exercises the §8
// worked example literally: a provider observed at 60% deviation (above the
// 50% slash threshold) records a `deviation_60%_at_*` flag, not a
// `slashed_` one. The slash branch costs the same 15 points as any other
// fail and shares the same flag vocabulary.
func TestApplyBenchmarkSlashBranchUsesDeviationFlagPrefix(t *testing.T) {
	opts := Options{}.withDefaults()
	p := Provider{ID: "p1", ClaimedIops: 1000, ClaimedThroughputMbps: 400}
	result := BenchmarkResult{
		IOPS:       IOPSBucket{RandomRead4k: 100, RandomWrite4k: 100, RandomRead64k: 100, RandomWrite64k: 100, MixedReadWrite: 100},
		Throughput: ThroughputBucket{SequentialRead: 40, SequentialWrite: 40, ParallelRead: 40, ParallelWrite: 40},
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	dev := providerDeviationPercent(p, result)
	assert.InDelta(t, 60, dev, 0.01)
	assert.GreaterOrEqual(t, dev, opts.SlashDeviationPercent)

	rep := Reputation{ProviderID: p.ID, Score: 50}
	rep = applyBenchmark(rep, p, result, opts, now)

	assert.Equal(t, 35, rep.Score)
	assert.Equal(t, 1, rep.FailCount)
	require.NotEmpty(t, rep.Flags)
	assert.True(t, strings.HasPrefix(rep.Flags[0], "deviation_60%_at_"))
	assert.False(t, strings.HasPrefix(rep.Flags[0], "slashed_"))
}
