package swarm

// Store is the persistence boundary for peers, content, the peer-content
// join, and transfer history, backed by the swarm_peers/swarm_content/
// peer_content/transfer_history tables in internal/statestore.SwarmSchema.
type Store interface {
	UpsertPeer(p Peer) error
	GetPeer(nodeID string) (Peer, bool)
	ListPeers() []Peer
	TopPeersByReputation(limit int) []Peer
	DeletePeer(nodeID string) error

	UpsertContent(c SwarmContent) error
	GetContent(cid string) (SwarmContent, bool)
	ListContent() []SwarmContent

	UpsertPeerContent(pc PeerContent) error
	PeersSeedingContent(cid string) []PeerContent

	AppendTransfer(t TransferHistory) error
	TransferStats(nodeID string) (uploaded, downloaded int64, count int)
}
