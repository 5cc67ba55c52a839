// Package vault implements the §4.A CredentialVault: an encrypt-at-rest
// store for cloud provider credentials, scoped per owner and backed by an
// append-only audit log.
package vault

import "time"

// Provider mirrors cloudgateway.Provider; kept as a distinct type here so
// this package has no compile-time dependency on cloudgateway (the vault
// only ever stores and decrypts bytes, it never talks to a provider API
// except during verification).
type Provider string

const (
	AWS          Provider = "aws"
	GCP          Provider = "gcp"
	Azure        Provider = "azure"
	Hetzner      Provider = "hetzner"
	OVH          Provider = "ovh"
	DigitalOcean Provider = "digitalocean"
	Vultr        Provider = "vultr"
	Linode       Provider = "linode"
)

// Status is the Credential lifecycle (spec §3): monotone along
// active -> {expired, revoked, deleted, error}; error may recover to active
// only via explicit re-verification; revoked and deleted are both terminal
// but distinct (revoked credentials remain listed for audit, deleted ones
// are unlinked from every owner-facing listing).
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
	StatusDeleted Status = "deleted"
	StatusError   Status = "error"
)

// Credential is the stored projection (spec §3). Plaintext fields never
// appear here; EncAPIKey/EncAPISecret/EncProjectID hold
// base64(iv(12B) || ct || tag(16B)).
type Credential struct {
	ID            string
	Provider      Provider
	Name          string
	Owner         string
	EncAPIKey     string
	EncAPISecret  string
	EncProjectID  string
	Region        string
	Scopes        []string
	CreatedAt     time.Time
	LastUsedAt    *time.Time
	UsageCount    int
	ExpiresAt     *time.Time
	Status        Status
	LastError     string
	LastErrorAt   *time.Time
}

// StoreRequest is the input to Store (spec §4.A).
type StoreRequest struct {
	Provider         Provider `validate:"required"`
	Name             string   `validate:"required,max=200"`
	APIKey           string   `validate:"required"`
	APISecret        string
	ProjectID        string
	Region           string
	Scopes           []string
	ExpiresAt        *time.Time
	SkipVerification bool
}

// Decrypted is the plaintext triple returned by GetDecrypted, held only for
// the duration of the caller's use.
type Decrypted struct {
	APIKey    string
	APISecret string
	ProjectID string
}
