package app

import (
	"context"

	"github.com/dws/control-plane/internal/confdb"
	"github.com/dws/control-plane/internal/statestore"
)

const confdbSchema = `
CREATE TABLE IF NOT EXISTS confdb_databases (
	id                   TEXT PRIMARY KEY,
	owner                TEXT NOT NULL,
	name                 TEXT NOT NULL,
	tier                 TEXT NOT NULL,
	status               TEXT NOT NULL,
	instance_id          TEXT NOT NULL DEFAULT '',
	public_ip            TEXT NOT NULL DEFAULT '',
	private_ip           TEXT NOT NULL DEFAULT '',
	region               TEXT NOT NULL DEFAULT '',
	port                 INTEGER NOT NULL DEFAULT 0,
	database             TEXT NOT NULL DEFAULT '',
	username             TEXT NOT NULL DEFAULT '',
	password_hash        TEXT NOT NULL DEFAULT '',
	connection_string    TEXT NOT NULL DEFAULT '',
	attestation_document TEXT NOT NULL DEFAULT '',
	enclave_id           TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	provisioned_at       TIMESTAMPTZ,
	last_activity_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	terminated_at        TIMESTAMPTZ,
	total_cost_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
	billed_hours         INTEGER NOT NULL DEFAULT 0,
	idle_timeout_ms       BIGINT NOT NULL DEFAULT 0,
	auto_terminate       BOOLEAN NOT NULL DEFAULT true,
	credential_id        TEXT NOT NULL DEFAULT '',
	provider             TEXT NOT NULL DEFAULT '',
	last_error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_confdb_databases_owner ON confdb_databases (owner);
`

const confdbColumns = `id, owner, name, tier, status, instance_id, public_ip, private_ip, region, port, database, username, password_hash, connection_string, attestation_document, enclave_id, created_at, provisioned_at, last_activity_at, terminated_at, total_cost_usd, billed_hours, idle_timeout_ms, auto_terminate, credential_id, provider, last_error`

type confdbStore struct {
	ss statestore.StateStore
}

func newConfdbStore(ss statestore.StateStore) *confdbStore {
	return &confdbStore{ss: ss}
}

func scanConfidentialDB(row statestore.Row) (confdb.ConfidentialDB, error) {
	var d confdb.ConfidentialDB
	err := row.Scan(
		&d.ID, &d.Owner, &d.Name, &d.Tier, &d.Status, &d.InstanceID, &d.PublicIP,
		&d.PrivateIP, &d.Region, &d.Port, &d.Database, &d.Username, &d.PasswordHash,
		&d.ConnectionString, &d.AttestationDocument, &d.EnclaveID, &d.CreatedAt,
		&d.ProvisionedAt, &d.LastActivityAt, &d.TerminatedAt, &d.TotalCostUsd,
		&d.BilledHours, &d.IdleTimeoutMs, &d.AutoTerminate, &d.CredentialID,
		&d.Provider, &d.LastError,
	)
	return d, err
}

func (s *confdbStore) Insert(d confdb.ConfidentialDB) error {
	query := `INSERT INTO confdb_databases (` + confdbColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
	ON CONFLICT (id) DO NOTHING`
	return s.ss.Run(context.Background(), query,
		d.ID, d.Owner, d.Name, d.Tier, d.Status, d.InstanceID, d.PublicIP,
		d.PrivateIP, d.Region, d.Port, d.Database, d.Username, d.PasswordHash,
		d.ConnectionString, d.AttestationDocument, d.EnclaveID, d.CreatedAt,
		d.ProvisionedAt, d.LastActivityAt, d.TerminatedAt, d.TotalCostUsd,
		d.BilledHours, d.IdleTimeoutMs, d.AutoTerminate, d.CredentialID,
		d.Provider, d.LastError,
	)
}

func (s *confdbStore) Get(id string) (confdb.ConfidentialDB, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+confdbColumns+` FROM confdb_databases WHERE id = $1`, id)
	d, err := scanConfidentialDB(row)
	if err != nil {
		return confdb.ConfidentialDB{}, false
	}
	return d, true
}

func (s *confdbStore) Update(d confdb.ConfidentialDB) error {
	query := `UPDATE confdb_databases SET
		owner=$2, name=$3, tier=$4, status=$5, instance_id=$6, public_ip=$7,
		private_ip=$8, region=$9, port=$10, database=$11, username=$12,
		password_hash=$13, connection_string=$14, attestation_document=$15,
		enclave_id=$16, provisioned_at=$17, last_activity_at=$18, terminated_at=$19,
		total_cost_usd=$20, billed_hours=$21, idle_timeout_ms=$22, auto_terminate=$23,
		credential_id=$24, provider=$25, last_error=$26
	WHERE id=$1`
	return s.ss.Run(context.Background(), query,
		d.ID, d.Owner, d.Name, d.Tier, d.Status, d.InstanceID, d.PublicIP,
		d.PrivateIP, d.Region, d.Port, d.Database, d.Username, d.PasswordHash,
		d.ConnectionString, d.AttestationDocument, d.EnclaveID, d.ProvisionedAt,
		d.LastActivityAt, d.TerminatedAt, d.TotalCostUsd, d.BilledHours,
		d.IdleTimeoutMs, d.AutoTerminate, d.CredentialID, d.Provider, d.LastError,
	)
}

func (s *confdbStore) ListByOwner(owner string) []confdb.ConfidentialDB {
	return s.list(`SELECT ` + confdbColumns + ` FROM confdb_databases WHERE owner = $1 ORDER BY created_at DESC`, owner)
}

func (s *confdbStore) ListAll() []confdb.ConfidentialDB {
	return s.list(`SELECT ` + confdbColumns + ` FROM confdb_databases ORDER BY created_at DESC`)
}

func (s *confdbStore) list(query string, args ...any) []confdb.ConfidentialDB {
	rows, err := s.ss.Query(context.Background(), query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []confdb.ConfidentialDB
	for rows.Next() {
		d, err := scanConfidentialDB(rows)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
