package confdb

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/cloudgateway"
	"github.com/dws/control-plane/internal/vault"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]ConfidentialDB
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]ConfidentialDB)} }

func (m *memStore) Insert(db ConfidentialDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[db.ID] = db
	return nil
}

func (m *memStore) Get(id string) (ConfidentialDB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.rows[id]
	return db, ok
}

func (m *memStore) Update(db ConfidentialDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[db.ID] = db
	return nil
}

func (m *memStore) ListByOwner(owner string) []ConfidentialDB {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ConfidentialDB
	for _, db := range m.rows {
		if strings.EqualFold(db.Owner, owner) {
			out = append(out, db)
		}
	}
	return out
}

func (m *memStore) ListAll() []ConfidentialDB {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConfidentialDB, 0, len(m.rows))
	for _, db := range m.rows {
		out = append(out, db)
	}
	return out
}

type noopAuditor struct{}

func (noopAuditor) Append(action, subject, owner, details string) {}

type fakeCreds struct{}

func (fakeCreds) GetDecrypted(ctx context.Context, credID, requester string) (vault.Decrypted, error) {
	return vault.Decrypted{APIKey: "k", APISecret: "s"}, nil
}

func alwaysConnectDialer(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	go server.Close()
	return client, nil
}

func newTestService() *Service {
	gw := cloudgateway.NewDefaultGateway(cloudgateway.Endpoints{})
	return New(newMemStore(), gw, fakeCreds{}, noopAuditor{}, nil, Options{
		ProvisionTimeout: time.Second,
		Dialer:           alwaysConnectDialer,
	})
}

func waitForStatus(t *testing.T, svc *Service, id string, want Status, timeout time.Duration) ConfidentialDB {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		db, ok := svc.store.Get(id)
		if ok && (db.Status == want || db.Status == StatusError) {
			return db
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", want)
	return ConfidentialDB{}
}

func TestProvisionLifecycleReachesRunning(t *testing.T) {
	svc := newTestService()
	owner := "0xAAAA000000000000000000000000000000"

	result, err := svc.Provision(context.Background(), ProvisionRequest{
		Owner: owner, Name: "mydb", Tier: Small, Region: "us-east-1", Provider: "hetzner",
	})
	require.NoError(t, err)
	assert.Len(t, result.PlaintextPassword, 32)
	assert.Contains(t, result.ConnectionString, result.PlaintextPassword)

	db := waitForStatus(t, svc, result.DB.ID, StatusRunning, 2*time.Second)
	require.Equal(t, StatusRunning, db.Status)
	assert.NotEmpty(t, db.PublicIP)
	assert.NotContains(t, db.ConnectionString, result.PlaintextPassword, "persisted connection string must not retain the one-time password")
}

func TestTerminateIsIdempotentAndTerminal(t *testing.T) {
	svc := newTestService()
	owner := "0xBBBB000000000000000000000000000000"

	result, err := svc.Provision(context.Background(), ProvisionRequest{
		Owner: owner, Name: "mydb", Tier: Small, Region: "us-east-1", Provider: "hetzner",
	})
	require.NoError(t, err)
	waitForStatus(t, svc, result.DB.ID, StatusRunning, 2*time.Second)

	require.NoError(t, svc.Terminate(context.Background(), result.DB.ID, owner))
	db, _ := svc.store.Get(result.DB.ID)
	assert.Equal(t, StatusTerminated, db.Status)
	assert.Empty(t, db.InstanceID)
	assert.NotNil(t, db.TerminatedAt)

	require.NoError(t, svc.Terminate(context.Background(), result.DB.ID, owner))
	db, _ = svc.store.Get(result.DB.ID)
	assert.Equal(t, StatusTerminated, db.Status)
}

func TestMaxDatabasesPerOwnerQuota(t *testing.T) {
	svc := newTestService()
	svc.opts.MaxDatabasesPerOwner = 1
	owner := "0xCCCC000000000000000000000000000000"

	_, err := svc.Provision(context.Background(), ProvisionRequest{Owner: owner, Name: "a", Tier: Small, Region: "us-east-1", Provider: "hetzner"})
	require.NoError(t, err)

	_, err = svc.Provision(context.Background(), ProvisionRequest{Owner: owner, Name: "b", Tier: Small, Region: "us-east-1", Provider: "hetzner"})
	require.Error(t, err)
	assert.Equal(t, apierr.Conflict, apierr.KindOf(err))
	assert.Len(t, svc.store.ListByOwner(owner), 1)
}

func TestOwnerMismatchIsUnauthorized(t *testing.T) {
	svc := newTestService()
	owner := "0xDDDD000000000000000000000000000000"

	result, err := svc.Provision(context.Background(), ProvisionRequest{Owner: owner, Name: "mydb", Tier: Small, Region: "us-east-1", Provider: "hetzner"})
	require.NoError(t, err)

	err = svc.Terminate(context.Background(), result.DB.ID, "0x0000000000000000000000000000000001")
	require.Error(t, err)
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))
}

func TestInvalidNameRejected(t *testing.T) {
	svc := newTestService()
	_, err := svc.Provision(context.Background(), ProvisionRequest{Owner: "0xE", Name: "Invalid-Name", Tier: Small, Region: "us-east-1", Provider: "hetzner"})
	require.Error(t, err)
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
}
