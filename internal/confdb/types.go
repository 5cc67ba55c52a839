// Package confdb implements the §4.C ConfidentialDBManager: on-demand
// provisioning, idle scale-to-zero, and lifecycle of hardware-isolated
// database instances.
package confdb

import "time"

// Tier selects the instance/enclave sizing class (spec §4.C).
type Tier string

const (
	Small  Tier = "small"
	Medium Tier = "medium"
	Large  Tier = "large"
	XLarge Tier = "xlarge"
)

// Status is the ConfidentialDB lifecycle (spec §3).
type Status string

const (
	StatusPending       Status = "pending"
	StatusProvisioning  Status = "provisioning"
	StatusInitializing  Status = "initializing"
	StatusRunning       Status = "running"
	StatusIdle          Status = "idle"
	StatusStopping      Status = "stopping"
	StatusStopped       Status = "stopped"
	StatusTerminated    Status = "terminated"
	StatusError         Status = "error"
)

// ConfidentialDB is the stored projection (spec §3). The cleartext
// password is never persisted here — it is returned to the caller exactly
// once, in the response to Provision/Start.
type ConfidentialDB struct {
	ID                  string
	Owner               string
	Name                string
	Tier                Tier
	Status              Status
	InstanceID          string
	PublicIP            string
	PrivateIP           string
	Region              string
	Port                int
	Database            string
	Username            string
	PasswordHash        string
	ConnectionString    string
	AttestationDocument string
	EnclaveID           string
	CreatedAt           time.Time
	ProvisionedAt       *time.Time
	LastActivityAt      time.Time
	TerminatedAt        *time.Time
	TotalCostUsd        float64
	BilledHours         int
	IdleTimeoutMs       int64
	AutoTerminate       bool
	CredentialID        string
	Provider            string
	LastError           string
}

// ProvisionRequest is the input to Provision (spec §4.C).
type ProvisionRequest struct {
	Owner         string `validate:"required"`
	Name          string `validate:"required"`
	Tier          Tier   `validate:"required"`
	Region        string
	Provider      string `validate:"required"`
	CredentialID  string
	IdleTimeoutMs int64
	AutoTerminate bool
}

// ProvisionResult carries the one-time plaintext password disclosure
// alongside the persisted (password-free) record (spec §3: "the cleartext
// password is returned to the caller exactly once").
type ProvisionResult struct {
	DB               ConfidentialDB
	PlaintextPassword string
	ConnectionString  string
}

// Stats is the aggregated projection returned by GetStats (spec §4.C).
type Stats struct {
	TotalCount   int
	ByTier       map[Tier]int
	ByRegion     map[string]int
	TotalCostUsd float64
}
