package app

import (
	"context"
	"encoding/json"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/statestore"
	"github.com/dws/control-plane/internal/storage"
)

const storageSchema = `
CREATE TABLE IF NOT EXISTS storage_providers (
	id                       TEXT PRIMARY KEY,
	address                  TEXT NOT NULL,
	endpoint                 TEXT NOT NULL DEFAULT '',
	type                     TEXT NOT NULL,
	claimed_capacity_mb      BIGINT NOT NULL DEFAULT 0,
	claimed_iops             BIGINT NOT NULL DEFAULT 0,
	claimed_throughput_mbps  BIGINT NOT NULL DEFAULT 0,
	region                   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS storage_reputations (
	provider_id            TEXT PRIMARY KEY REFERENCES storage_providers(id) ON DELETE CASCADE,
	score                  INTEGER NOT NULL DEFAULT 50,
	benchmark_count        INTEGER NOT NULL DEFAULT 0,
	pass_count             INTEGER NOT NULL DEFAULT 0,
	fail_count             INTEGER NOT NULL DEFAULT 0,
	last_benchmark_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_deviation_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	uptime_percent         DOUBLE PRECISION NOT NULL DEFAULT 0,
	flags                  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS storage_benchmark_results (
	id                   BIGSERIAL PRIMARY KEY,
	provider_id          TEXT NOT NULL REFERENCES storage_providers(id) ON DELETE CASCADE,
	ts                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	iops                 JSONB NOT NULL DEFAULT '{}',
	throughput           JSONB NOT NULL DEFAULT '{}',
	latency              JSONB NOT NULL DEFAULT '{}',
	ipfs_metrics         JSONB,
	data_integrity_score INTEGER NOT NULL DEFAULT 0,
	overall_score        INTEGER NOT NULL DEFAULT 0,
	attestation_hash     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_storage_benchmark_results_provider_ts ON storage_benchmark_results (provider_id, ts DESC);
`

const providerColumns = `id, address, endpoint, type, claimed_capacity_mb, claimed_iops, claimed_throughput_mbps, region`
const reputationColumns = `provider_id, score, benchmark_count, pass_count, fail_count, last_benchmark_at, last_deviation_percent, uptime_percent, flags`
const benchmarkResultColumns = `provider_id, ts, iops, throughput, latency, ipfs_metrics, data_integrity_score, overall_score, attestation_hash`

type storageStore struct {
	ss statestore.StateStore
}

func newStorageStore(ss statestore.StateStore) *storageStore {
	return &storageStore{ss: ss}
}

func scanProvider(row statestore.Row) (storage.Provider, error) {
	var p storage.Provider
	err := row.Scan(&p.ID, &p.Address, &p.Endpoint, &p.Type, &p.ClaimedCapacityMb, &p.ClaimedIops, &p.ClaimedThroughputMbps, &p.Region)
	return p, err
}

func (s *storageStore) UpsertProvider(p storage.Provider) error {
	query := `INSERT INTO storage_providers (` + providerColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		address=$2, endpoint=$3, type=$4, claimed_capacity_mb=$5,
		claimed_iops=$6, claimed_throughput_mbps=$7, region=$8`
	return s.ss.Run(context.Background(), query,
		p.ID, p.Address, p.Endpoint, p.Type, p.ClaimedCapacityMb, p.ClaimedIops, p.ClaimedThroughputMbps, p.Region)
}

func (s *storageStore) GetProvider(id string) (storage.Provider, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+providerColumns+` FROM storage_providers WHERE id = $1`, id)
	p, err := scanProvider(row)
	if err != nil {
		return storage.Provider{}, false
	}
	return p, true
}

func (s *storageStore) ListProviders() []storage.Provider {
	rows, err := s.ss.Query(context.Background(), `SELECT `+providerColumns+` FROM storage_providers`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []storage.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func scanReputation(row statestore.Row) (storage.Reputation, error) {
	var r storage.Reputation
	err := row.Scan(&r.ProviderID, &r.Score, &r.BenchmarkCount, &r.PassCount, &r.FailCount,
		&r.LastBenchmarkAt, &r.LastDeviationPercent, &r.UptimePercent, &r.Flags)
	return r, err
}

func (s *storageStore) GetReputation(providerID string) (storage.Reputation, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+reputationColumns+` FROM storage_reputations WHERE provider_id = $1`, providerID)
	r, err := scanReputation(row)
	if err != nil {
		return storage.Reputation{}, false
	}
	return r, true
}

func (s *storageStore) PutReputation(r storage.Reputation) error {
	query := `INSERT INTO storage_reputations (` + reputationColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (provider_id) DO UPDATE SET
		score=$2, benchmark_count=$3, pass_count=$4, fail_count=$5,
		last_benchmark_at=$6, last_deviation_percent=$7, uptime_percent=$8, flags=$9`
	return s.ss.Run(context.Background(), query,
		r.ProviderID, r.Score, r.BenchmarkCount, r.PassCount, r.FailCount,
		r.LastBenchmarkAt, r.LastDeviationPercent, r.UptimePercent, r.Flags)
}

// AppendResult inserts a result then trims history to storage.HistoryWindow
// (spec §4.D sliding window), per the Store interface's documented contract.
func (s *storageStore) AppendResult(r storage.BenchmarkResult) error {
	iopsJSON, err := json.Marshal(r.IOPS)
	if err != nil {
		return apierr.Wrap(apierr.Validation, "marshaling iops bucket", err)
	}
	tpJSON, err := json.Marshal(r.Throughput)
	if err != nil {
		return apierr.Wrap(apierr.Validation, "marshaling throughput bucket", err)
	}
	latJSON, err := json.Marshal(r.Latency)
	if err != nil {
		return apierr.Wrap(apierr.Validation, "marshaling latency bucket", err)
	}
	var ipfsJSON []byte
	if r.IPFSMetrics != nil {
		ipfsJSON, err = json.Marshal(r.IPFSMetrics)
		if err != nil {
			return apierr.Wrap(apierr.Validation, "marshaling ipfs bucket", err)
		}
	}

	ctx := context.Background()
	insert := `INSERT INTO storage_benchmark_results (` + benchmarkResultColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if err := s.ss.Run(ctx, insert, r.ProviderID, r.Timestamp, iopsJSON, tpJSON, latJSON, ipfsJSON, r.DataIntegrityScore, r.OverallScore, r.AttestationHash); err != nil {
		return err
	}

	trim := `DELETE FROM storage_benchmark_results WHERE provider_id = $1 AND id NOT IN (
		SELECT id FROM storage_benchmark_results WHERE provider_id = $1 ORDER BY ts DESC LIMIT $2
	)`
	return s.ss.Run(ctx, trim, r.ProviderID, storage.HistoryWindow)
}

func (s *storageStore) RecentResults(providerID string, limit int) []storage.BenchmarkResult {
	if limit <= 0 || limit > storage.HistoryWindow {
		limit = storage.HistoryWindow
	}
	rows, err := s.ss.Query(context.Background(),
		`SELECT `+benchmarkResultColumns+` FROM storage_benchmark_results WHERE provider_id = $1 ORDER BY ts DESC LIMIT $2`,
		providerID, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []storage.BenchmarkResult
	for rows.Next() {
		var r storage.BenchmarkResult
		var iopsJSON, tpJSON, latJSON, ipfsJSON []byte
		if err := rows.Scan(&r.ProviderID, &r.Timestamp, &iopsJSON, &tpJSON, &latJSON, &ipfsJSON, &r.DataIntegrityScore, &r.OverallScore, &r.AttestationHash); err != nil {
			continue
		}
		_ = json.Unmarshal(iopsJSON, &r.IOPS)
		_ = json.Unmarshal(tpJSON, &r.Throughput)
		_ = json.Unmarshal(latJSON, &r.Latency)
		if len(ipfsJSON) > 0 {
			var b storage.IPFSBucket
			if json.Unmarshal(ipfsJSON, &b) == nil {
				r.IPFSMetrics = &b
			}
		}
		out = append(out, r)
	}
	// results come back newest-first; callers expect oldest-first per the
	// in-memory convention set by the storage package's own tests.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
