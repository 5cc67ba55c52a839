package confdb

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatePassword returns a random 32-character alphanumeric password
// (spec §4.C).
func generatePassword() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 32)
	for i, b := range buf {
		out[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(out), nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// buildCloudInit composes the hardened workload image install script for
// the enclave instance, tuned from the tier per spec §4.C. The password
// itself is injected out-of-band via the provider's secret-env mechanism
// (CreateRequest.Extensions), never embedded in the script.
func buildCloudInit(id, cnSuffix string, spec TierSpec) string {
	sharedBuffers := spec.MemoryMb / 4
	effectiveCacheSize := (spec.MemoryMb * 3) / 4

	return fmt.Sprintf(`#cloud-config
write_files:
  - path: /etc/dws/runtime.conf
    content: |
      shared_buffers = %dMB
      effective_cache_size = %dMB
      max_connections = %d
runcmd:
  - dws-workload-agent install --enclave --tls-self-signed --cn=%s.%s
  - dws-workload-agent set-admin-password --from-env DWS_DB_PASSWORD
`, sharedBuffers, effectiveCacheSize, spec.MaxConnections, id, cnSuffix)
}
