// Package chaingateway defines the §6 ChainGateway external collaborator:
// read/write calls against registered contracts and an event bus, used to
// publish benchmark attestations and look up eligible content locations.
// The on-chain contract code and RPC client are explicitly out of scope
// (spec §1); this package only owns the interface the core depends on and
// a best-effort publish helper with bounded retry + journal hand-off
// (spec §9c: durability is left to an out-of-scope journaling worker).
package chaingateway

import (
	"context"
	"log/slog"
	"time"
)

// Attestation is published after each storage benchmark (spec §4.D).
type Attestation struct {
	ProviderID     string
	Timestamp      time.Time
	OverallScore   int
	AttestationHash string
}

// ContentLocation is a (cid -> peer) eligibility record the chain exposes
// for SwarmCoordinator.findContentSources to consult via ContentIndex.
type ContentLocation struct {
	CID      string
	NodeID   string
	Endpoint string
}

// Gateway is the read/write surface this core depends on. Production
// implementations talk to an on-chain contract + RPC client; those are out
// of scope here.
type Gateway interface {
	PublishAttestation(ctx context.Context, att Attestation) error
	LookupContentLocations(ctx context.Context, cid string) ([]ContentLocation, error)
}

// Journal receives attestations that could not be published after
// exhausting retries, for later replay by an out-of-scope background
// worker (spec §9c).
type Journal interface {
	Record(ctx context.Context, att Attestation, cause error) error
}

// BestEffort wraps a Gateway with bounded exponential-backoff retry and a
// journal hand-off on persistent failure. It never blocks the caller
// longer than the configured attempt budget.
type BestEffort struct {
	gateway    Gateway
	journal    Journal
	logger     *slog.Logger
	maxAttempts int
	baseDelay  time.Duration
}

// NewBestEffort creates a best-effort publisher. journal may be nil, in
// which case persistent failures are only logged.
func NewBestEffort(gateway Gateway, journal Journal, logger *slog.Logger) *BestEffort {
	return &BestEffort{
		gateway:     gateway,
		journal:     journal,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   200 * time.Millisecond,
	}
}

// PublishAttestation attempts to publish att, retrying with exponential
// backoff up to maxAttempts before journaling the failure. It never
// returns an error to the caller — publication is explicitly best-effort
// per spec §6/§9c.
func (b *BestEffort) PublishAttestation(ctx context.Context, att Attestation) {
	var lastErr error
	delay := b.baseDelay
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := b.gateway.PublishAttestation(ctx, att); err == nil {
			return
		} else {
			lastErr = err
		}
		if attempt == b.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = b.maxAttempts
		case <-time.After(delay):
		}
		delay *= 2
	}

	if b.logger != nil {
		b.logger.Warn("chaingateway: attestation publish failed, journaling",
			"provider_id", att.ProviderID, "error", lastErr)
	}
	if b.journal != nil {
		jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.journal.Record(jctx, att, lastErr); err != nil && b.logger != nil {
			b.logger.Error("chaingateway: journaling attestation failed", "error", err)
		}
	}
}

// LookupContentLocations proxies to the underlying gateway; a lookup
// failure is treated as "no eligible locations" so SwarmCoordinator falls
// back to its own peer table (spec §4.E findContentSources).
func (b *BestEffort) LookupContentLocations(ctx context.Context, cid string) []ContentLocation {
	locs, err := b.gateway.LookupContentLocations(ctx, cid)
	if err != nil {
		if b.logger != nil {
			b.logger.Debug("chaingateway: content lookup failed, falling back", "cid", cid, "error", err)
		}
		return nil
	}
	return locs
}
