// Package cloudgateway implements the §4.B CloudGateway: a uniform
// abstraction over cloud providers (create/get/delete/wait-for instance).
// The cloud provider REST APIs themselves are external collaborators
// (spec §1); this package owns only the Instance projection and the
// per-provider drivers that produce it.
package cloudgateway

import "time"

// Provider identifies a supported cloud provider, matching the Credential
// provider enum in spec §3.
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

// InstanceStatus is the uniform instance lifecycle projection (spec §4.B).
type InstanceStatus string

const (
	StatusPending    InstanceStatus = "pending"
	StatusRunning    InstanceStatus = "running"
	StatusStopped    InstanceStatus = "stopped"
	StatusTerminated InstanceStatus = "terminated"
)

// Instance is the uniform projection every provider driver must produce.
type Instance struct {
	ID           string
	PublicIP     *string
	PrivateIP    *string
	Status       InstanceStatus
	InstanceType string
	Region       string
	LaunchTime   time.Time
	Tags         map[string]string
}

// CreateRequest describes a instance to create. Extensions carries
// provider-specific fields (e.g. Nitro enclave options) that drivers
// interpret and that unrelated drivers ignore, per spec §4.B.
type CreateRequest struct {
	Provider     Provider
	Name         string
	InstanceType string
	Region       string
	SSHKeyName   string
	CloudInit    string
	Tags         map[string]string
	Extensions   map[string]any
}

// EnclaveOptions is the Extensions["enclave"] shape used by
// ConfidentialDBManager to request a hardware-isolated enclave.
type EnclaveOptions struct {
	Enabled  bool
	MemoryMb int
	Cpus     int
}

// Credentials is the decrypted triple CredentialVault.getDecrypted returns,
// passed through to the provider driver for the duration of one call. It
// is never retained by the gateway or driver beyond the call.
type Credentials struct {
	APIKey    string
	APISecret string
	ProjectID string
}
