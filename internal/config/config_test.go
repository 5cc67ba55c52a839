package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, 5, cfg.MaxDatabasesPerOwner)
	assert.Equal(t, 3, cfg.MaxConcurrentBenchmarks)
	assert.Equal(t, 50, cfg.MaxPeerConnections)
	assert.Equal(t, 10000, cfg.AuditLogCapacity)
	assert.Equal(t, "0.0.0.0:8443", cfg.ListenAddr())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DWS_PORT", "9090")
	t.Setenv("DWS_DB_MAX_PER_OWNER", "9")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 9, cfg.MaxDatabasesPerOwner)
}

func TestDurationFallback(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("", 30*time.Second))
	assert.Equal(t, 30*time.Second, Duration("not-a-duration", 30*time.Second))
	assert.Equal(t, 5*time.Minute, Duration("5m", time.Second))
}
