// Package swarm implements the §4.E SwarmCoordinator: peer registry,
// content-to-peer mapping, regional routing, health, and rebalancing
// against the external distributed state store.
package swarm

import "time"

// ContentTier orders rebalance priority (spec §4.E: "system < popular < cold").
type ContentTier string

const (
	TierSystem  ContentTier = "system"
	TierPopular ContentTier = "popular"
	TierCold    ContentTier = "cold"
)

func (t ContentTier) rank() int {
	switch t {
	case TierSystem:
		return 0
	case TierPopular:
		return 1
	default:
		return 2
	}
}

// Health is the derived content-availability tier (spec §3).
type Health string

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthDegraded  Health = "degraded"
	HealthCritical  Health = "critical"
)

// Peer is the registered swarm node projection (spec §3). Reputation is in
// [0,10000], initialized to 1000.
type Peer struct {
	NodeID           string
	Endpoint         string
	Region           string
	LastSeen         time.Time
	LatencyMs        float64
	Reputation       int
	Capabilities     []string
	AvailableContent []string
	UploadSpeed      float64
	DownloadSpeed    float64
	Connected        bool
}

// SwarmContent is the registered content projection (spec §3).
type SwarmContent struct {
	CID          string
	InfoHash     string
	Size         int64
	Tier         ContentTier
	SeederCount  int
	LeecherCount int
	Regions      []string
	Health       Health
	LastAudit    time.Time
}

// DeriveHealth applies the §3 seeder-count formula: >=target excellent,
// >=min good, >=2 degraded, else critical.
func DeriveHealth(seederCount, targetPeers, minPeers int) Health {
	switch {
	case seederCount >= targetPeers:
		return HealthExcellent
	case seederCount >= minPeers:
		return HealthGood
	case seederCount >= 2:
		return HealthDegraded
	default:
		return HealthCritical
	}
}

// PeerContent is the (peer, content) join row (spec §3). PK is
// (NodeID, CID); Store implementations cascade-delete on either side.
type PeerContent struct {
	NodeID          string
	CID             string
	Seeding         bool
	DownloadedBytes int64
	UploadedBytes   int64
	StartedAt       time.Time
	LastActivity    time.Time
}

// TransferHistory is one append-only transfer record (spec §3).
type TransferHistory struct {
	From       string
	To         string
	CID        string
	Bytes      int64
	DurationMs int64
	Success    bool
	Timestamp  time.Time
}

// ContentSource is what requestContent needs to reach a peer.
type ContentSource struct {
	NodeID   string
	Endpoint string
	Region   string
}

// ContentManifest is the peer-reported swarm manifest for a CID (spec
// §6: "GET /v2/swarm/content/:cid returns {magnetUri, infoHash}").
type ContentManifest struct {
	MagnetURI string
	InfoHash  string
}
