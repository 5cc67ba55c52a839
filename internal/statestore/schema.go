package statestore

// SwarmSchema is the authoritative DDL for the swarm tables (spec §3, §6).
// It is applied via golang-migrate before the SwarmCoordinator starts,
// mirroring the teacher's RunGlobalMigrations wiring.
const SwarmSchema = `
CREATE TABLE IF NOT EXISTS swarm_peers (
	node_id          TEXT PRIMARY KEY,
	endpoint         TEXT NOT NULL,
	region           TEXT NOT NULL,
	last_seen        TIMESTAMPTZ NOT NULL DEFAULT now(),
	latency_ms       DOUBLE PRECISION NOT NULL DEFAULT 0,
	reputation       INTEGER NOT NULL DEFAULT 1000,
	capabilities     TEXT[] NOT NULL DEFAULT '{}',
	available_content TEXT[] NOT NULL DEFAULT '{}',
	upload_speed     DOUBLE PRECISION NOT NULL DEFAULT 0,
	download_speed   DOUBLE PRECISION NOT NULL DEFAULT 0,
	connected        BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS swarm_content (
	cid           TEXT PRIMARY KEY,
	info_hash     TEXT NOT NULL,
	size          BIGINT NOT NULL,
	tier          TEXT NOT NULL,
	seeder_count  INTEGER NOT NULL DEFAULT 0,
	leecher_count INTEGER NOT NULL DEFAULT 0,
	regions       TEXT[] NOT NULL DEFAULT '{}',
	health        TEXT NOT NULL DEFAULT 'critical',
	last_audit    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_swarm_content_tier_seeders ON swarm_content (tier, seeder_count);

CREATE TABLE IF NOT EXISTS peer_content (
	node_id          TEXT NOT NULL REFERENCES swarm_peers(node_id) ON DELETE CASCADE,
	cid              TEXT NOT NULL REFERENCES swarm_content(cid) ON DELETE CASCADE,
	seeding          SMALLINT NOT NULL DEFAULT 0,
	downloaded_bytes BIGINT NOT NULL DEFAULT 0,
	uploaded_bytes   BIGINT NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_activity    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (node_id, cid)
);
CREATE INDEX IF NOT EXISTS idx_peer_content_cid_seeding ON peer_content (cid, seeding);

CREATE TABLE IF NOT EXISTS transfer_history (
	id           BIGSERIAL PRIMARY KEY,
	from_node    TEXT NOT NULL,
	to_node      TEXT NOT NULL,
	cid          TEXT NOT NULL,
	bytes        BIGINT NOT NULL,
	duration_ms  BIGINT NOT NULL,
	success      BOOLEAN NOT NULL,
	ts           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transfer_history_from_ts ON transfer_history (from_node, ts);
`
