package app

import (
	"context"

	"github.com/dws/control-plane/internal/statestore"
	"github.com/dws/control-plane/internal/swarm"
)

// swarmStore is the production swarm.Store, backed by the swarm_peers,
// swarm_content, peer_content, and transfer_history tables defined in
// statestore.SwarmSchema -- that schema is purpose-built for this package,
// so it's reused here rather than redefined.
type swarmStore struct {
	ss statestore.StateStore
}

func newSwarmStore(ss statestore.StateStore) *swarmStore {
	return &swarmStore{ss: ss}
}

const peerColumns = `node_id, endpoint, region, last_seen, latency_ms, reputation, capabilities, available_content, upload_speed, download_speed, connected`
const contentColumns = `cid, info_hash, size, tier, seeder_count, leecher_count, regions, health, last_audit`
const peerContentColumns = `node_id, cid, seeding, downloaded_bytes, uploaded_bytes, started_at, last_activity`

func scanPeer(row statestore.Row) (swarm.Peer, error) {
	var p swarm.Peer
	err := row.Scan(&p.NodeID, &p.Endpoint, &p.Region, &p.LastSeen, &p.LatencyMs, &p.Reputation,
		&p.Capabilities, &p.AvailableContent, &p.UploadSpeed, &p.DownloadSpeed, &p.Connected)
	return p, err
}

func (s *swarmStore) UpsertPeer(p swarm.Peer) error {
	query := `INSERT INTO swarm_peers (` + peerColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (node_id) DO UPDATE SET
		endpoint=$2, region=$3, last_seen=$4, latency_ms=$5, reputation=$6,
		capabilities=$7, available_content=$8, upload_speed=$9, download_speed=$10, connected=$11`
	return s.ss.Run(context.Background(), query,
		p.NodeID, p.Endpoint, p.Region, p.LastSeen, p.LatencyMs, p.Reputation,
		p.Capabilities, p.AvailableContent, p.UploadSpeed, p.DownloadSpeed, p.Connected)
}

func (s *swarmStore) GetPeer(nodeID string) (swarm.Peer, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+peerColumns+` FROM swarm_peers WHERE node_id = $1`, nodeID)
	p, err := scanPeer(row)
	if err != nil {
		return swarm.Peer{}, false
	}
	return p, true
}

func (s *swarmStore) ListPeers() []swarm.Peer {
	rows, err := s.ss.Query(context.Background(), `SELECT `+peerColumns+` FROM swarm_peers`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []swarm.Peer
	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *swarmStore) TopPeersByReputation(limit int) []swarm.Peer {
	rows, err := s.ss.Query(context.Background(), `SELECT `+peerColumns+` FROM swarm_peers ORDER BY reputation DESC LIMIT $1`, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []swarm.Peer
	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *swarmStore) DeletePeer(nodeID string) error {
	return s.ss.Run(context.Background(), `DELETE FROM swarm_peers WHERE node_id = $1`, nodeID)
}

func scanContent(row statestore.Row) (swarm.SwarmContent, error) {
	var c swarm.SwarmContent
	err := row.Scan(&c.CID, &c.InfoHash, &c.Size, &c.Tier, &c.SeederCount, &c.LeecherCount, &c.Regions, &c.Health, &c.LastAudit)
	return c, err
}

func (s *swarmStore) UpsertContent(c swarm.SwarmContent) error {
	query := `INSERT INTO swarm_content (` + contentColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (cid) DO UPDATE SET
		info_hash=$2, size=$3, tier=$4, seeder_count=$5, leecher_count=$6,
		regions=$7, health=$8, last_audit=$9`
	return s.ss.Run(context.Background(), query,
		c.CID, c.InfoHash, c.Size, c.Tier, c.SeederCount, c.LeecherCount, c.Regions, c.Health, c.LastAudit)
}

func (s *swarmStore) GetContent(cid string) (swarm.SwarmContent, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+contentColumns+` FROM swarm_content WHERE cid = $1`, cid)
	c, err := scanContent(row)
	if err != nil {
		return swarm.SwarmContent{}, false
	}
	return c, true
}

func (s *swarmStore) ListContent() []swarm.SwarmContent {
	rows, err := s.ss.Query(context.Background(), `SELECT `+contentColumns+` FROM swarm_content ORDER BY tier, seeder_count`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []swarm.SwarmContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *swarmStore) UpsertPeerContent(pc swarm.PeerContent) error {
	query := `INSERT INTO peer_content (` + peerContentColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (node_id, cid) DO UPDATE SET
		seeding=$3, downloaded_bytes=$4, uploaded_bytes=$5, started_at=$6, last_activity=$7`
	seeding := 0
	if pc.Seeding {
		seeding = 1
	}
	return s.ss.Run(context.Background(), query,
		pc.NodeID, pc.CID, seeding, pc.DownloadedBytes, pc.UploadedBytes, pc.StartedAt, pc.LastActivity)
}

func (s *swarmStore) PeersSeedingContent(cid string) []swarm.PeerContent {
	rows, err := s.ss.Query(context.Background(),
		`SELECT `+peerContentColumns+` FROM peer_content WHERE cid = $1 AND seeding = 1`, cid)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []swarm.PeerContent
	for rows.Next() {
		var pc swarm.PeerContent
		var seeding int
		if err := rows.Scan(&pc.NodeID, &pc.CID, &seeding, &pc.DownloadedBytes, &pc.UploadedBytes, &pc.StartedAt, &pc.LastActivity); err != nil {
			continue
		}
		pc.Seeding = seeding != 0
		out = append(out, pc)
	}
	return out
}

func (s *swarmStore) AppendTransfer(t swarm.TransferHistory) error {
	query := `INSERT INTO transfer_history (from_node, to_node, cid, bytes, duration_ms, success, ts)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`
	return s.ss.Run(context.Background(), query, t.From, t.To, t.CID, t.Bytes, t.DurationMs, t.Success, t.Timestamp)
}

func (s *swarmStore) TransferStats(nodeID string) (uploaded, downloaded int64, count int) {
	row := s.ss.QueryOne(context.Background(),
		`SELECT COALESCE(SUM(bytes) FILTER (WHERE from_node = $1), 0),
		        COALESCE(SUM(bytes) FILTER (WHERE to_node = $1), 0),
		        COUNT(*) FILTER (WHERE from_node = $1 OR to_node = $1)
		 FROM transfer_history`, nodeID)
	_ = row.Scan(&uploaded, &downloaded, &count)
	return uploaded, downloaded, count
}
