package swarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws/control-plane/internal/chaingateway"
)

var errHealthProbe = errors.New("health probe failed")

type memStore struct {
	mu        sync.Mutex
	peers     map[string]Peer
	content   map[string]SwarmContent
	peerCont  map[string]PeerContent
	transfers []TransferHistory
}

func newMemStore() *memStore {
	return &memStore{
		peers:    make(map[string]Peer),
		content:  make(map[string]SwarmContent),
		peerCont: make(map[string]PeerContent),
	}
}

func (m *memStore) UpsertPeer(p Peer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.NodeID] = p
	return nil
}

func (m *memStore) GetPeer(nodeID string) (Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[nodeID]
	return p, ok
}

func (m *memStore) ListPeers() []Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

func (m *memStore) TopPeersByReputation(limit int) []Peer {
	all := m.ListPeers()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (m *memStore) DeletePeer(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, nodeID)
	return nil
}

func (m *memStore) UpsertContent(c SwarmContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[c.CID] = c
	return nil
}

func (m *memStore) GetContent(cid string) (SwarmContent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[cid]
	return c, ok
}

func (m *memStore) ListContent() []SwarmContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SwarmContent, 0, len(m.content))
	for _, c := range m.content {
		out = append(out, c)
	}
	return out
}

func (m *memStore) UpsertPeerContent(pc PeerContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peerCont[pc.NodeID+"|"+pc.CID] = pc
	return nil
}

func (m *memStore) PeersSeedingContent(cid string) []PeerContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PeerContent, 0)
	for _, pc := range m.peerCont {
		if pc.CID == cid {
			out = append(out, pc)
		}
	}
	return out
}

func (m *memStore) AppendTransfer(t TransferHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *memStore) TransferStats(nodeID string) (uploaded, downloaded int64, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transfers {
		if t.From == nodeID {
			uploaded += t.Bytes
			count++
		}
		if t.To == nodeID {
			downloaded += t.Bytes
		}
	}
	return
}

type fakeTransport struct {
	healthErr    error
	manifest     *ContentManifest
	fetchErr     error
	replicated   []string
	replicateErr error
}

func (f *fakeTransport) Health(ctx context.Context, peer Peer) error { return f.healthErr }

func (f *fakeTransport) FetchContent(ctx context.Context, peer Peer, selfNodeID, selfRegion, cid string) (*ContentManifest, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.manifest, nil
}

func (f *fakeTransport) Replicate(ctx context.Context, peer Peer, selfNodeID, selfRegion string, req ReplicateRequest) error {
	f.replicated = append(f.replicated, peer.NodeID+":"+req.CID)
	return f.replicateErr
}

type fakeIndex struct {
	locations []chaingateway.ContentLocation
}

func (f *fakeIndex) LookupContentLocations(ctx context.Context, cid string) []chaingateway.ContentLocation {
	return f.locations
}

func newTestCoordinator(store Store, transport Transport, index ContentIndex) *Coordinator {
	c := New(Self{NodeID: "self", Region: "us-east"}, store, transport, index, nil, Options{})
	_ = c.Start(Peer{NodeID: "self", Region: "us-east"})
	return c
}

func TestRegisterContentDerivesHealthFromSeederCount(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)
	c.opts.TargetPeersPerContent = 5
	c.opts.MinPeersPerContent = 3

	var content SwarmContent
	var err error
	for i := 0; i < 3; i++ {
		content, err = c.RegisterContent("cid-1", "hash", 1024, TierSystem)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, content.SeederCount)
	assert.Equal(t, HealthGood, content.Health)

	for i := 0; i < 2; i++ {
		content, err = c.RegisterContent("cid-1", "hash", 1024, TierSystem)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, content.SeederCount)
	assert.Equal(t, HealthExcellent, content.Health)
}

func TestRegisterContentRejectsUnknownTier(t *testing.T) {
	c := newTestCoordinator(newMemStore(), &fakeTransport{}, nil)
	_, err := c.RegisterContent("cid-1", "hash", 1024, "quantum")
	require.Error(t, err)
}

func TestGetPeersForContentOrdersByReputationThenLatency(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)

	_ = store.UpsertPeer(Peer{NodeID: "a", Reputation: 500, LatencyMs: 10})
	_ = store.UpsertPeer(Peer{NodeID: "b", Reputation: 900, LatencyMs: 50})
	_ = store.UpsertPeer(Peer{NodeID: "c", Reputation: 900, LatencyMs: 5})
	for _, id := range []string{"a", "b", "c"} {
		_ = store.UpsertPeerContent(PeerContent{NodeID: id, CID: "cid-1", Seeding: true})
	}

	peers := c.GetPeersForContent("cid-1")
	require.Len(t, peers, 3)
	assert.Equal(t, "c", peers[0].NodeID)
	assert.Equal(t, "b", peers[1].NodeID)
	assert.Equal(t, "a", peers[2].NodeID)
}

func TestGetRegionalPeersPrefersSameRegion(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)
	_ = c.RegisterPeer(Peer{NodeID: "far", Region: "eu-west", Reputation: 5000})
	_ = c.RegisterPeer(Peer{NodeID: "near", Region: "us-east", Reputation: 10})

	peers := c.GetRegionalPeers(10)
	require.Len(t, peers, 2)
	assert.Equal(t, "near", peers[0].NodeID)
}

func TestFindContentSourcesPrefersIndexThenFallsBack(t *testing.T) {
	store := newMemStore()
	index := &fakeIndex{locations: []chaingateway.ContentLocation{{CID: "cid-1", NodeID: "remote", Endpoint: "http://remote"}}}
	c := newTestCoordinator(store, &fakeTransport{}, index)

	sources := c.FindContentSources(context.Background(), "cid-1")
	require.Len(t, sources, 1)
	assert.Equal(t, "remote", sources[0].NodeID)

	index.locations = nil
	_ = store.UpsertPeer(Peer{NodeID: "local", Reputation: 100})
	_ = store.UpsertPeerContent(PeerContent{NodeID: "local", CID: "cid-1", Seeding: true})
	sources = c.FindContentSources(context.Background(), "cid-1")
	require.Len(t, sources, 1)
	assert.Equal(t, "local", sources[0].NodeID)
}

// TestRecordTransferReputationClamp exercises the spec's literal
// worked example: starting reputation 9998, three successes yield
// 9999, 10000, 10000 (clamped); a subsequent failure yields 9990.
func TestRecordTransferReputationClamp(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)
	_ = store.UpsertPeer(Peer{NodeID: "p1", Reputation: 9998})

	expect := []int{9999, 10000, 10000}
	for _, want := range expect {
		require.NoError(t, c.RecordTransfer("p1", "self", "cid-1", 1024, 100, true))
		p, _ := store.GetPeer("p1")
		assert.Equal(t, want, p.Reputation)
	}

	require.NoError(t, c.RecordTransfer("p1", "self", "cid-1", 0, 100, false))
	p, _ := store.GetPeer("p1")
	assert.Equal(t, 9990, p.Reputation)
}

func TestRecordTransferReputationFloor(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)
	_ = store.UpsertPeer(Peer{NodeID: "p1", Reputation: 5})

	require.NoError(t, c.RecordTransfer("p1", "self", "cid-1", 0, 100, false))
	p, _ := store.GetPeer("p1")
	assert.Equal(t, 0, p.Reputation)
}

func TestRequestContentUpdatesLatencyAndRecordsPeerContent(t *testing.T) {
	store := newMemStore()
	transport := &fakeTransport{manifest: &ContentManifest{MagnetURI: "magnet:?xt=cid-1", InfoHash: "hash"}}
	c := newTestCoordinator(store, transport, nil)
	_ = store.UpsertPeer(Peer{NodeID: "p1", Endpoint: "http://p1"})

	manifest, err := c.RequestContent(context.Background(), "cid-1", Peer{NodeID: "p1", Endpoint: "http://p1"})
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Equal(t, "hash", manifest.InfoHash)

	rows := store.PeersSeedingContent("cid-1")
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Seeding)
}

func TestRebalanceOrdersByTierThenAscendingSeeders(t *testing.T) {
	store := newMemStore()
	transport := &fakeTransport{}
	c := newTestCoordinator(store, transport, nil)
	c.opts.MinPeersPerContent = 3

	_ = store.UpsertContent(SwarmContent{CID: "popular-low", Tier: TierPopular, SeederCount: 1})
	_ = store.UpsertContent(SwarmContent{CID: "system-low", Tier: TierSystem, SeederCount: 1})
	_ = store.UpsertContent(SwarmContent{CID: "system-ok", Tier: TierSystem, SeederCount: 5})
	_ = c.RegisterPeer(Peer{NodeID: "regional", Region: "us-east", Endpoint: "http://regional"})

	require.NoError(t, c.runRebalance(context.Background()))
	require.NotEmpty(t, transport.replicated)
	assert.Equal(t, "regional:system-low", transport.replicated[0])

	updated, ok := store.GetContent("system-ok")
	require.True(t, ok)
	assert.Equal(t, HealthGood, updated.Health)
}

func TestHealthCheckEvictsLongSilentPeers(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{healthErr: errHealthProbe}, nil)

	_ = store.UpsertPeer(Peer{NodeID: "stale", LastSeen: time.Unix(0, 0)})
	require.NoError(t, c.runHealthCheck(context.Background()))

	_, ok := store.GetPeer("stale")
	assert.False(t, ok)
}

func TestStatsAggregatesTransfersAndHealthScore(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, &fakeTransport{}, nil)
	_ = store.UpsertPeer(Peer{NodeID: "p1", Reputation: 8000})
	_ = store.UpsertPeer(Peer{NodeID: "p2", Reputation: 6000})

	require.NoError(t, c.RecordTransfer("self", "p1", "cid-1", 2048, 50, true))
	require.NoError(t, c.RecordTransfer("self", "p2", "cid-2", 1024, 50, false))

	stats := c.Stats()
	assert.Equal(t, int64(3072), stats.UploadedBytes)
	assert.Equal(t, 2, stats.TransferCount)
	assert.InDelta(t, 50, stats.HealthScore, 0.01)
}
