// Package storage implements the §4.D StorageProviderRegistry &
// Benchmarker: provider registration, periodic and reputation-scaled
// benchmarking, scoring, deviation detection, and reputation tracking.
package storage

import "time"

// ProviderType selects the benchmark dispatch path (spec §3/§4.D).
type ProviderType string

const (
	Block  ProviderType = "block"
	Object ProviderType = "object"
	IPFS   ProviderType = "ipfs"
	Hybrid ProviderType = "hybrid"
)

// Provider is the registered projection (spec §3).
type Provider struct {
	ID                    string       `validate:"required"`
	Address               string       `validate:"required"`
	Endpoint              string
	Type                  ProviderType `validate:"required,oneof=block object ipfs hybrid"`
	ClaimedCapacityMb     int64
	ClaimedIops           int64
	ClaimedThroughputMbps int64
	Region                string
}

// IOPSBucket holds the iops.* metrics (spec §4.D).
type IOPSBucket struct {
	RandomRead4k   float64
	RandomWrite4k  float64
	RandomRead64k  float64
	RandomWrite64k float64
	MixedReadWrite float64
}

// Sum totals the bucket for score normalization (spec §4.D: "IOPS sum / 2000").
func (b IOPSBucket) Sum() float64 {
	return b.RandomRead4k + b.RandomWrite4k + b.RandomRead64k + b.RandomWrite64k + b.MixedReadWrite
}

// ThroughputBucket holds the throughput.* metrics.
type ThroughputBucket struct {
	SequentialRead  float64
	SequentialWrite float64
	ParallelRead    float64
	ParallelWrite   float64
}

// Sum totals the bucket for score normalization ("throughput sum / 200").
func (b ThroughputBucket) Sum() float64 {
	return b.SequentialRead + b.SequentialWrite + b.ParallelRead + b.ParallelWrite
}

// LatencyBucket holds the latency.* metrics, in milliseconds.
type LatencyBucket struct {
	FirstByte    float64
	AverageRead  float64
	AverageWrite float64
	P99Read      float64
	P99Write     float64
}

// Average is the overall latency figure used for score normalization
// ("max(0, 100 - avgLatency/10*100)").
func (b LatencyBucket) Average() float64 {
	return (b.FirstByte + b.AverageRead + b.AverageWrite + b.P99Read + b.P99Write) / 5
}

// IPFSBucket holds the ipfs-specific sub-metrics (spec §4.D).
type IPFSBucket struct {
	PinningSpeedMBps       float64
	CidResolutionLatencyMs float64
	RetrievalTimeMs        float64
	SwarmPeerCount         int
}

// BenchmarkResult is one benchmark run's output (spec §3).
type BenchmarkResult struct {
	ProviderID         string
	Timestamp          time.Time
	IOPS               IOPSBucket
	Throughput         ThroughputBucket
	Latency            LatencyBucket
	IPFSMetrics        *IPFSBucket
	DataIntegrityScore int
	OverallScore       int
	AttestationHash    string
}

// Reputation is the per-provider score history (spec §3). Score is in
// [0,100], initialized to 50 on registration.
type Reputation struct {
	ProviderID           string
	Score                int
	BenchmarkCount       int
	PassCount            int
	FailCount            int
	LastBenchmarkAt      time.Time
	LastDeviationPercent float64
	UptimePercent        float64
	Flags                []string
}
