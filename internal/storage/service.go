package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/chaingateway"
	"github.com/dws/control-plane/internal/clock"
	"github.com/dws/control-plane/internal/reqvalidate"
	"github.com/dws/control-plane/internal/telemetry"
)

// Publisher announces benchmark attestations; satisfied by
// internal/chaingateway.BestEffort. Optional — RunBenchmark works without one.
type Publisher interface {
	PublishAttestation(ctx context.Context, att chaingateway.Attestation)
}

// HistoryWindow is the per-provider sliding window size for benchmark
// history (spec §4.D: "history per provider is a sliding window of last
// 10 results"). Store implementations should retain at most this many
// results per provider.
const HistoryWindow = 10

// Store is the persistence boundary for providers, reputations, and
// benchmark history. AppendResult implementations should trim each
// provider's history to HistoryWindow.
type Store interface {
	UpsertProvider(p Provider) error
	GetProvider(id string) (Provider, bool)
	ListProviders() []Provider
	GetReputation(providerID string) (Reputation, bool)
	PutReputation(r Reputation) error
	AppendResult(r BenchmarkResult) error
	RecentResults(providerID string, limit int) []BenchmarkResult
}

// Service implements the §4.D StorageProviderRegistry & Benchmarker.
type Service struct {
	store     Store
	runner    Runner
	publisher Publisher
	logger    *slog.Logger
	opts      Options

	mu       sync.Mutex
	inFlight map[string]struct{}
	sem      chan struct{}
}

// New constructs a Service. publisher may be nil; attestations are then
// simply not announced.
func New(store Store, runner Runner, publisher Publisher, logger *slog.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	if runner == nil {
		runner = NewHTTPRunner()
	}
	return &Service{
		store:     store,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		inFlight:  make(map[string]struct{}),
		sem:       make(chan struct{}, opts.MaxConcurrentBenchmarks),
	}
}

// RunBackgroundLoops starts the reputation-scaled scheduling loop (spec
// §4.D) on the given Clock, until ctx is cancelled.
func (s *Service) RunBackgroundLoops(ctx context.Context, clk clock.Clock) {
	clock.Every(ctx, clk, s.opts.ScheduleCheckInterval, s.runSchedule, clock.Options{}, s.logger)
}

// Register validates and persists a storage provider (spec §4.D). The
// initial benchmark spec §4.D calls for "on registration" is the caller's
// responsibility (e.g. the admin CLI issues RunBenchmark right after a
// successful Register) rather than a side effect of this call, so Register
// stays a plain synchronous validate-and-persist and never races an
// explicitly requested benchmark for the same provider.
func (s *Service) Register(p Provider) (Provider, error) {
	if err := reqvalidate.Struct(p); err != nil {
		return Provider{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return Provider{}, apierr.New(apierr.Validation, "provider id is required")
	}
	if strings.TrimSpace(p.Address) == "" {
		return Provider{}, apierr.New(apierr.Validation, "provider address is required")
	}
	if err := s.store.UpsertProvider(p); err != nil {
		return Provider{}, apierr.Wrap(apierr.Transient, "persisting provider", err)
	}
	if _, ok := s.store.GetReputation(p.ID); !ok {
		_ = s.store.PutReputation(Reputation{ProviderID: p.ID, Score: 50})
		telemetry.ReputationScore.WithLabelValues(p.ID).Set(50)
	}
	return p, nil
}

// RunBenchmark executes a single benchmark against a provider, updates its
// reputation, and returns the result (spec §4.D). Synchronous; callers that
// want background scheduling use RunBackgroundLoops.
func (s *Service) RunBenchmark(ctx context.Context, providerID string) (BenchmarkResult, error) {
	p, ok := s.store.GetProvider(providerID)
	if !ok {
		return BenchmarkResult{}, apierr.New(apierr.NotFound, "storage provider not found")
	}

	s.mu.Lock()
	if _, running := s.inFlight[providerID]; running {
		s.mu.Unlock()
		return BenchmarkResult{}, apierr.New(apierr.Conflict, "benchmark already in flight for this provider")
	}
	s.inFlight[providerID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, providerID)
		s.mu.Unlock()
	}()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return BenchmarkResult{}, apierr.Wrap(apierr.Timeout, "waiting for a benchmark slot", ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.BenchmarkTimeout)
	defer cancel()

	started := time.Now()
	result := BenchmarkResult{ProviderID: p.ID, Timestamp: started.UTC()}

	if p.Type == IPFS || p.Type == Hybrid {
		ipfsMetrics, integrity, err := s.runner.RunIPFS(ctx, p, s.opts)
		if err != nil {
			telemetry.BenchmarksRunTotal.WithLabelValues(string(p.Type), "error").Inc()
			return BenchmarkResult{}, err
		}
		result.IPFSMetrics = &ipfsMetrics
		result.DataIntegrityScore = integrity
	}
	if p.Type != IPFS {
		iops, tp, lat, integrity, err := s.runner.RunBlockObject(ctx, p, s.opts)
		if err != nil {
			telemetry.BenchmarksRunTotal.WithLabelValues(string(p.Type), "error").Inc()
			return BenchmarkResult{}, err
		}
		result.IOPS = iops
		result.Throughput = tp
		result.Latency = lat
		if p.Type != Hybrid {
			result.DataIntegrityScore = integrity
		}
	}
	switch {
	case p.Type == IPFS:
		result.OverallScore = normalizeIPFS(*result.IPFSMetrics)
	case p.Type == Hybrid:
		result.OverallScore = (normalize(result.IOPS, result.Throughput, result.Latency) + normalizeIPFS(*result.IPFSMetrics)) / 2
	default:
		result.OverallScore = normalize(result.IOPS, result.Throughput, result.Latency)
	}
	sum := sha256.Sum256(attestationSeed(p.ID, started, result.OverallScore, result.IOPS.Sum(), result.Throughput.Sum()))
	result.AttestationHash = fmt.Sprintf("%x", sum)

	if err := s.store.AppendResult(result); err != nil {
		return BenchmarkResult{}, apierr.Wrap(apierr.Transient, "persisting benchmark result", err)
	}

	rep, _ := s.store.GetReputation(p.ID)
	rep = applyBenchmark(rep, p, result, s.opts, started.UTC())
	if err := s.store.PutReputation(rep); err != nil {
		return BenchmarkResult{}, apierr.Wrap(apierr.Transient, "persisting reputation", err)
	}
	telemetry.ReputationScore.WithLabelValues(p.ID).Set(float64(rep.Score))

	if s.publisher != nil {
		s.publisher.PublishAttestation(ctx, chaingateway.Attestation{
			ProviderID:      result.ProviderID,
			Timestamp:       result.Timestamp,
			OverallScore:    result.OverallScore,
			AttestationHash: result.AttestationHash,
		})
	}

	classification := "pass"
	if rep.LastDeviationPercent >= s.opts.FailDeviationPercent {
		classification = "fail"
	}
	telemetry.BenchmarksRunTotal.WithLabelValues(string(p.Type), classification).Inc()
	telemetry.BenchmarkDuration.WithLabelValues(string(p.Type)).Observe(time.Since(started).Seconds())

	return result, nil
}

// Rank returns providers ordered by reputation score, descending.
func (s *Service) Rank() []Reputation {
	providers := s.store.ListProviders()
	out := make([]Reputation, 0, len(providers))
	for _, p := range providers {
		rep, ok := s.store.GetReputation(p.ID)
		if !ok {
			rep = Reputation{ProviderID: p.ID}
		}
		out = append(out, rep)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// runSchedule is the background scheduling loop (spec §4.D): providers are
// rechecked at an interval scaled by their current reputation tier, plus a
// daily random spot check across the whole registry.
func (s *Service) runSchedule(ctx context.Context) error {
	now := time.Now().UTC()
	for _, p := range s.store.ListProviders() {
		rep, ok := s.store.GetReputation(p.ID)
		due := !ok
		if ok {
			interval := scheduleInterval(rep.Score, s.opts)
			due = rep.LastBenchmarkAt.IsZero() || now.Sub(rep.LastBenchmarkAt) >= interval
		}
		if !due && rand.Float64()*100 >= s.opts.RandomSpotCheckPercent {
			continue
		}
		if _, err := s.RunBenchmark(ctx, p.ID); err != nil && s.logger != nil {
			s.logger.Warn("storage: scheduled benchmark failed", "provider", p.ID, "error", err)
		}
	}
	return nil
}

// attestationSeed digests the inputs a downstream verifier needs to confirm
// this attestation actually speaks to the benchmark it claims to (spec
// §3/§4.D): providerId, timestamp, overallScore, and the representative
// iops/throughput totals the score was derived from.
func attestationSeed(providerID string, at time.Time, overallScore int, iops, throughput float64) []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%.4f|%.4f", providerID, at.UnixNano(), overallScore, iops, throughput))
}
