package swarm

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/chaingateway"
	"github.com/dws/control-plane/internal/clock"
	"github.com/dws/control-plane/internal/telemetry"
)

// ContentIndex is the external peer-to-content lookup findContentSources
// consults first (spec §4.E); satisfied by
// internal/chaingateway.BestEffort.LookupContentLocations.
type ContentIndex interface {
	LookupContentLocations(ctx context.Context, cid string) []chaingateway.ContentLocation
}

// Self describes this node's own identity within the swarm.
type Self struct {
	NodeID string
	Region string
}

// Coordinator implements the §4.E SwarmCoordinator.
type Coordinator struct {
	self      Self
	store     Store
	transport Transport
	index     ContentIndex
	logger    *slog.Logger
	opts      Options

	mu    sync.RWMutex
	peers map[string]Peer
}

// New constructs a Coordinator. index may be nil, in which case
// findContentSources always falls back to getPeersForContent.
func New(self Self, store Store, transport Transport, index ContentIndex, logger *slog.Logger, opts Options) *Coordinator {
	opts = opts.withDefaults()
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &Coordinator{
		self:      self,
		store:     store,
		transport: transport,
		index:     index,
		logger:    logger,
		opts:      opts,
		peers:     make(map[string]Peer),
	}
}

// Start upserts self and loads the top-N peers by reputation into memory
// (spec §4.E: "On startup: run schema, upsert self, load top-N peers by
// reputation (maxPeerConnections)"). Schema application is
// internal/statestore's responsibility, not this package's.
func (c *Coordinator) Start(selfPeer Peer) error {
	selfPeer.NodeID = c.self.NodeID
	selfPeer.Region = c.self.Region
	if selfPeer.Reputation == 0 {
		selfPeer.Reputation = 1000
	}
	selfPeer.LastSeen = time.Now().UTC()
	selfPeer.Connected = true
	if err := c.store.UpsertPeer(selfPeer); err != nil {
		return apierr.Wrap(apierr.Transient, "upserting self as peer", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = make(map[string]Peer)
	c.peers[selfPeer.NodeID] = selfPeer
	for _, p := range c.store.TopPeersByReputation(c.opts.MaxPeerConnections) {
		c.peers[p.NodeID] = p
	}
	telemetry.SwarmPeersConnected.Set(float64(len(c.peers)))
	return nil
}

// RunBackgroundLoops starts the health-check and rebalance loops (spec
// §4.E) until ctx is cancelled.
func (c *Coordinator) RunBackgroundLoops(ctx context.Context, clk clock.Clock) {
	clock.Every(ctx, clk, c.opts.HealthCheckInterval, c.runHealthCheck, clock.Options{}, c.logger)
	clock.Every(ctx, clk, c.opts.RebalanceInterval, c.runRebalance, clock.Options{}, c.logger)
}

// RegisterPeer upserts a peer row and replaces the in-memory entry (spec
// §4.E).
func (c *Coordinator) RegisterPeer(p Peer) error {
	if strings.TrimSpace(p.NodeID) == "" {
		return apierr.New(apierr.Validation, "peer node id is required")
	}
	if p.Reputation == 0 {
		p.Reputation = 1000
	}
	if err := c.store.UpsertPeer(p); err != nil {
		return apierr.Wrap(apierr.Transient, "persisting peer", err)
	}
	c.mu.Lock()
	c.peers[p.NodeID] = p
	telemetry.SwarmPeersConnected.Set(float64(len(c.peers)))
	c.mu.Unlock()
	return nil
}

// RegisterContent inserts content or increments its seeder count, and
// marks self as seeding it (spec §4.E).
func (c *Coordinator) RegisterContent(cid, infoHash string, size int64, tier ContentTier) (SwarmContent, error) {
	if strings.TrimSpace(cid) == "" {
		return SwarmContent{}, apierr.New(apierr.Validation, "cid is required")
	}
	switch tier {
	case TierSystem, TierPopular, TierCold:
	default:
		return SwarmContent{}, apierr.New(apierr.Validation, "unknown content tier")
	}

	content, exists := c.store.GetContent(cid)
	now := time.Now().UTC()
	if !exists {
		content = SwarmContent{
			CID:      cid,
			InfoHash: infoHash,
			Size:     size,
			Tier:     tier,
		}
	}
	content.SeederCount++
	content.LastAudit = now
	content.Health = DeriveHealth(content.SeederCount, c.opts.TargetPeersPerContent, c.opts.MinPeersPerContent)
	if err := c.store.UpsertContent(content); err != nil {
		return SwarmContent{}, apierr.Wrap(apierr.Transient, "persisting content", err)
	}

	if err := c.store.UpsertPeerContent(PeerContent{
		NodeID:       c.self.NodeID,
		CID:          cid,
		Seeding:      true,
		StartedAt:    now,
		LastActivity: now,
	}); err != nil {
		return SwarmContent{}, apierr.Wrap(apierr.Transient, "marking self as seeding", err)
	}
	return content, nil
}

// GetPeersForContent joins peer_content and swarm_peers on seeding=1,
// ordered by reputation desc then latency asc, limited to
// targetPeersPerContent (spec §4.E).
func (c *Coordinator) GetPeersForContent(cid string) []Peer {
	seeders := c.store.PeersSeedingContent(cid)
	out := make([]Peer, 0, len(seeders))
	for _, pc := range seeders {
		if !pc.Seeding {
			continue
		}
		if p, ok := c.store.GetPeer(pc.NodeID); ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reputation != out[j].Reputation {
			return out[i].Reputation > out[j].Reputation
		}
		return out[i].LatencyMs < out[j].LatencyMs
	})
	if len(out) > c.opts.TargetPeersPerContent {
		out = out[:c.opts.TargetPeersPerContent]
	}
	return out
}

// GetRegionalPeers excludes self; same-region peers sort first, then
// reputation desc, latency asc (spec §4.E).
func (c *Coordinator) GetRegionalPeers(limit int) []Peer {
	c.mu.RLock()
	all := make([]Peer, 0, len(c.peers))
	for _, p := range c.peers {
		if p.NodeID == c.self.NodeID {
			continue
		}
		all = append(all, p)
	}
	c.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		iSame := all[i].Region == c.self.Region
		jSame := all[j].Region == c.self.Region
		if iSame != jSame {
			return iSame
		}
		if all[i].Reputation != all[j].Reputation {
			return all[i].Reputation > all[j].Reputation
		}
		return all[i].LatencyMs < all[j].LatencyMs
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// FindContentSources consults the external ContentIndex first, falling
// back to GetPeersForContent when the index is unset or returns nothing
// (spec §4.E).
func (c *Coordinator) FindContentSources(ctx context.Context, cid string) []ContentSource {
	if c.index != nil {
		locs := c.index.LookupContentLocations(ctx, cid)
		if len(locs) > 0 {
			out := make([]ContentSource, 0, len(locs))
			for _, l := range locs {
				out = append(out, ContentSource{NodeID: l.NodeID, Endpoint: l.Endpoint})
			}
			return out
		}
	}
	peers := c.GetPeersForContent(cid)
	out := make([]ContentSource, 0, len(peers))
	for _, p := range peers {
		out = append(out, ContentSource{NodeID: p.NodeID, Endpoint: p.Endpoint, Region: p.Region})
	}
	return out
}

// RequestContent calls a peer's swarm endpoint with X-Node-ID/X-Region
// headers and a bounded timeout, updates the peer's latency from elapsed
// time, and records an unseeded peer_content row for self (spec §4.E).
func (c *Coordinator) RequestContent(ctx context.Context, cid string, peer Peer) (*ContentManifest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestContentTimeout)
	defer cancel()

	started := time.Now()
	manifest, err := c.transport.FetchContent(ctx, peer, c.self.NodeID, c.self.Region, cid)
	elapsed := time.Since(started)
	if err != nil {
		return nil, err
	}

	peer.LatencyMs = float64(elapsed.Milliseconds())
	peer.LastSeen = time.Now().UTC()
	if perr := c.store.UpsertPeer(peer); perr != nil && c.logger != nil {
		c.logger.Warn("swarm: failed to persist peer latency", "peer", peer.NodeID, "error", perr)
	}
	c.mu.Lock()
	c.peers[peer.NodeID] = peer
	c.mu.Unlock()

	now := time.Now().UTC()
	if perr := c.store.UpsertPeerContent(PeerContent{
		NodeID:       c.self.NodeID,
		CID:          cid,
		Seeding:      false,
		StartedAt:    now,
		LastActivity: now,
	}); perr != nil && c.logger != nil {
		c.logger.Warn("swarm: failed to record peer_content row", "cid", cid, "error", perr)
	}
	return manifest, nil
}

// RecordTransfer appends a transfer_history row and updates the sending
// peer's reputation: +1 (cap 10000) on success, -10 (floor 0) on failure
// (spec §4.E).
func (c *Coordinator) RecordTransfer(from, to, cid string, bytes, durationMs int64, success bool) error {
	if err := c.store.AppendTransfer(TransferHistory{
		From: from, To: to, CID: cid, Bytes: bytes, DurationMs: durationMs,
		Success: success, Timestamp: time.Now().UTC(),
	}); err != nil {
		return apierr.Wrap(apierr.Transient, "appending transfer history", err)
	}

	peer, ok := c.store.GetPeer(from)
	if !ok {
		peer = Peer{NodeID: from, Reputation: 1000}
	}
	outcome := "failure"
	if success {
		outcome = "success"
		peer.Reputation = clampReputation(peer.Reputation + 1)
		peer.UploadSpeed = float64(bytes) / float64(durationMs+1) * 1000
	} else {
		peer.Reputation = clampReputation(peer.Reputation - 10)
	}
	if err := c.store.UpsertPeer(peer); err != nil {
		return apierr.Wrap(apierr.Transient, "updating peer reputation", err)
	}
	c.mu.Lock()
	c.peers[peer.NodeID] = peer
	c.mu.Unlock()

	telemetry.SwarmTransfersTotal.WithLabelValues(outcome).Inc()
	return nil
}

func clampReputation(r int) int {
	if r < 0 {
		return 0
	}
	if r > 10000 {
		return 10000
	}
	return r
}

// runHealthCheck probes peers not seen recently, evicts long-silent ones
// (spec §4.E).
func (c *Coordinator) runHealthCheck(ctx context.Context) error {
	staleAfter := 3 * c.opts.HealthCheckInterval
	evictAfter := 10 * c.opts.HealthCheckInterval
	now := time.Now().UTC()

	for _, p := range c.store.ListPeers() {
		if p.NodeID == c.self.NodeID {
			continue
		}
		silence := now.Sub(p.LastSeen)
		if silence >= evictAfter {
			if err := c.store.DeletePeer(p.NodeID); err != nil && c.logger != nil {
				c.logger.Warn("swarm: failed to evict peer", "peer", p.NodeID, "error", err)
				continue
			}
			c.mu.Lock()
			delete(c.peers, p.NodeID)
			c.mu.Unlock()
			continue
		}
		if silence < staleAfter {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, c.opts.HealthProbeTimeout)
		started := time.Now()
		err := c.transport.Health(probeCtx, p)
		elapsed := time.Since(started)
		cancel()

		if err != nil {
			p.Connected = false
			p.Reputation = clampReputation(p.Reputation - 5)
		} else {
			p.Connected = true
			p.LatencyMs = float64(elapsed.Milliseconds())
			p.LastSeen = time.Now().UTC()
		}
		if uerr := c.store.UpsertPeer(p); uerr != nil && c.logger != nil {
			c.logger.Warn("swarm: failed to persist health check result", "peer", p.NodeID, "error", uerr)
			continue
		}
		c.mu.Lock()
		c.peers[p.NodeID] = p
		c.mu.Unlock()
	}
	telemetry.SwarmPeersConnected.Set(float64(len(c.store.ListPeers())))
	return nil
}

// runRebalance selects under-seeded content ordered by tier then ascending
// seeder count, and asks regional peers to replicate it (spec §4.E).
func (c *Coordinator) runRebalance(ctx context.Context) error {
	all := c.store.ListContent()
	candidates := make([]SwarmContent, 0, len(all))
	for _, content := range all {
		if content.SeederCount < c.opts.MinPeersPerContent {
			candidates = append(candidates, content)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Tier.rank(), candidates[j].Tier.rank()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].SeederCount < candidates[j].SeederCount
	})
	if len(candidates) > c.opts.RebalanceBatchLimit {
		candidates = candidates[:c.opts.RebalanceBatchLimit]
	}

	regional := c.GetRegionalPeers(c.opts.ReplicateFanout)
	for _, content := range candidates {
		for _, peer := range regional {
			err := c.transport.Replicate(ctx, peer, c.self.NodeID, c.self.Region, ReplicateRequest{
				CID:            content.CID,
				RequestingNode: c.self.NodeID,
				Priority:       content.Tier.rank(),
			})
			if err != nil && c.logger != nil {
				c.logger.Warn("swarm: replicate request failed", "peer", peer.NodeID, "cid", content.CID, "error", err)
			}
		}
	}
	telemetry.SwarmRebalanceRunsTotal.Inc()

	for _, content := range all {
		content.Health = DeriveHealth(content.SeederCount, c.opts.TargetPeersPerContent, c.opts.MinPeersPerContent)
		if err := c.store.UpsertContent(content); err != nil && c.logger != nil {
			c.logger.Warn("swarm: failed to persist recomputed health", "cid", content.CID, "error", err)
		}
	}
	return nil
}

// Stats aggregates this node's transfer counts/bytes and swarm-wide health
// (spec §4.E).
type Stats struct {
	UploadedBytes   int64
	DownloadedBytes int64
	TransferCount   int
	HealthScore     float64
}

func (c *Coordinator) Stats() Stats {
	uploaded, downloaded, count := c.store.TransferStats(c.self.NodeID)

	peers := c.store.ListPeers()
	var repSum int
	for _, p := range peers {
		repSum += p.Reputation
	}
	var avgRep float64
	if len(peers) > 0 {
		avgRep = float64(repSum) / float64(len(peers))
	}
	healthScore := avgRep / 100
	if healthScore > 100 {
		healthScore = 100
	}

	return Stats{
		UploadedBytes:   uploaded,
		DownloadedBytes: downloaded,
		TransferCount:   count,
		HealthScore:     healthScore,
	}
}
