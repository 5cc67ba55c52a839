package app

import (
	"context"

	"github.com/dws/control-plane/internal/statestore"
	"github.com/dws/control-plane/internal/vault"
)

// vaultSchema is the authoritative DDL for the credentials table, in the
// same spirit as internal/statestore.SwarmSchema.
const vaultSchema = `
CREATE TABLE IF NOT EXISTS vault_credentials (
	id              TEXT PRIMARY KEY,
	provider        TEXT NOT NULL,
	name            TEXT NOT NULL,
	owner           TEXT NOT NULL,
	enc_api_key     TEXT NOT NULL DEFAULT '',
	enc_api_secret  TEXT NOT NULL DEFAULT '',
	enc_project_id  TEXT NOT NULL DEFAULT '',
	region          TEXT NOT NULL DEFAULT '',
	scopes          TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used_at    TIMESTAMPTZ,
	usage_count     INTEGER NOT NULL DEFAULT 0,
	expires_at      TIMESTAMPTZ,
	status          TEXT NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	last_error_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_vault_credentials_owner ON vault_credentials (owner);
`

const vaultColumns = `id, provider, name, owner, enc_api_key, enc_api_secret, enc_project_id, region, scopes, created_at, last_used_at, usage_count, expires_at, status, last_error, last_error_at`

// vaultStore is the production vault.Store backed by statestore.StateStore,
// grounded on the teacher's pkg/user/store.go column-list-plus-scan-row
// shape (const columns string, scanRow helper, INSERT ... RETURNING).
type vaultStore struct {
	ss statestore.StateStore
}

func newVaultStore(ss statestore.StateStore) *vaultStore {
	return &vaultStore{ss: ss}
}

func scanVaultCredential(row statestore.Row) (vault.Credential, error) {
	var c vault.Credential
	err := row.Scan(
		&c.ID, &c.Provider, &c.Name, &c.Owner, &c.EncAPIKey, &c.EncAPISecret,
		&c.EncProjectID, &c.Region, &c.Scopes, &c.CreatedAt, &c.LastUsedAt,
		&c.UsageCount, &c.ExpiresAt, &c.Status, &c.LastError, &c.LastErrorAt,
	)
	return c, err
}

func (s *vaultStore) Insert(c vault.Credential) error {
	query := `INSERT INTO vault_credentials (` + vaultColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (id) DO NOTHING`
	return s.ss.Run(context.Background(), query,
		c.ID, c.Provider, c.Name, c.Owner, c.EncAPIKey, c.EncAPISecret,
		c.EncProjectID, c.Region, c.Scopes, c.CreatedAt, c.LastUsedAt,
		c.UsageCount, c.ExpiresAt, c.Status, c.LastError, c.LastErrorAt,
	)
}

func (s *vaultStore) Get(id string) (vault.Credential, bool) {
	row := s.ss.QueryOne(context.Background(), `SELECT `+vaultColumns+` FROM vault_credentials WHERE id = $1`, id)
	c, err := scanVaultCredential(row)
	if err != nil {
		return vault.Credential{}, false
	}
	return c, true
}

func (s *vaultStore) Update(c vault.Credential) error {
	query := `UPDATE vault_credentials SET
		provider=$2, name=$3, owner=$4, enc_api_key=$5, enc_api_secret=$6,
		enc_project_id=$7, region=$8, scopes=$9, last_used_at=$10,
		usage_count=$11, expires_at=$12, status=$13, last_error=$14, last_error_at=$15
	WHERE id=$1`
	return s.ss.Run(context.Background(), query,
		c.ID, c.Provider, c.Name, c.Owner, c.EncAPIKey, c.EncAPISecret,
		c.EncProjectID, c.Region, c.Scopes, c.LastUsedAt,
		c.UsageCount, c.ExpiresAt, c.Status, c.LastError, c.LastErrorAt,
	)
}

func (s *vaultStore) ListByOwner(owner string) []vault.Credential {
	rows, err := s.ss.Query(context.Background(), `SELECT `+vaultColumns+` FROM vault_credentials WHERE owner = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []vault.Credential
	for rows.Next() {
		c, err := scanVaultCredential(rows)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
