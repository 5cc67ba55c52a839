package storage

import "time"

// Options enumerates the Benchmarker configuration options with spec §6
// defaults applied when zero.
type Options struct {
	SmallFileSizeKb          int
	MediumFileSizeMb         int
	LargeFileSizeMb          int
	IOPSTestDuration         time.Duration
	ThroughputTestDuration   time.Duration
	LatencyTestSamples       int
	WarnDeviationPercent     float64
	FailDeviationPercent     float64
	SlashDeviationPercent    float64
	LowReputationInterval    time.Duration
	MediumReputationInterval time.Duration
	HighReputationInterval   time.Duration
	RandomSpotCheckPercent   float64
	MaxConcurrentBenchmarks  int
	BenchmarkTimeout         time.Duration
	ScheduleCheckInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.SmallFileSizeKb <= 0 {
		o.SmallFileSizeKb = 4
	}
	if o.MediumFileSizeMb <= 0 {
		o.MediumFileSizeMb = 1
	}
	if o.LargeFileSizeMb <= 0 {
		o.LargeFileSizeMb = 100
	}
	if o.IOPSTestDuration <= 0 {
		o.IOPSTestDuration = 30 * time.Second
	}
	if o.ThroughputTestDuration <= 0 {
		o.ThroughputTestDuration = 60 * time.Second
	}
	if o.LatencyTestSamples <= 0 {
		o.LatencyTestSamples = 100
	}
	if o.WarnDeviationPercent <= 0 {
		o.WarnDeviationPercent = 15
	}
	if o.FailDeviationPercent <= 0 {
		o.FailDeviationPercent = 30
	}
	if o.SlashDeviationPercent <= 0 {
		o.SlashDeviationPercent = 50
	}
	if o.LowReputationInterval <= 0 {
		o.LowReputationInterval = 7 * 24 * time.Hour
	}
	if o.MediumReputationInterval <= 0 {
		o.MediumReputationInterval = 30 * 24 * time.Hour
	}
	if o.HighReputationInterval <= 0 {
		o.HighReputationInterval = 90 * 24 * time.Hour
	}
	if o.RandomSpotCheckPercent <= 0 {
		o.RandomSpotCheckPercent = 1
	}
	if o.MaxConcurrentBenchmarks <= 0 {
		o.MaxConcurrentBenchmarks = 3
	}
	if o.BenchmarkTimeout <= 0 {
		o.BenchmarkTimeout = 5 * time.Minute
	}
	if o.ScheduleCheckInterval <= 0 {
		o.ScheduleCheckInterval = 24 * time.Hour
	}
	return o
}
