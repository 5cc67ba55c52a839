package confdb

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/clock"
	"github.com/dws/control-plane/internal/cloudgateway"
	"github.com/dws/control-plane/internal/keyedlock"
	"github.com/dws/control-plane/internal/reqvalidate"
	"github.com/dws/control-plane/internal/telemetry"
	"github.com/dws/control-plane/internal/vault"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

const (
	defaultIdleTimeoutMs   = 3_600_000
	defaultMaxPerOwner     = 5
	defaultProvisionTimeout = 10 * time.Minute
	defaultHealthInterval  = 30 * time.Second
	defaultCostInterval    = 60 * time.Second
	tcpProbeTimeout        = 5 * time.Second
	tcpProbeInterval       = 10 * time.Second
	connectionScheme       = "dws"
	defaultPort            = 5432
	defaultUsername        = "dwsadmin"
	cnSuffix               = "db.dws.internal"
)

// Auditor records a lifecycle event; satisfied by internal/audit.Log.
type Auditor interface {
	Append(action, subject, owner, details string)
}

// CredentialSource resolves an owner's decrypted cloud credential;
// satisfied by internal/vault.Service.GetDecrypted.
type CredentialSource interface {
	GetDecrypted(ctx context.Context, credID, requester string) (vault.Decrypted, error)
}

// Store is the persistence boundary for ConfidentialDB rows.
type Store interface {
	Insert(db ConfidentialDB) error
	Get(id string) (ConfidentialDB, bool)
	Update(db ConfidentialDB) error
	ListByOwner(owner string) []ConfidentialDB
	ListAll() []ConfidentialDB
}

// Options configures Service, with spec §6 defaults applied when zero.
type Options struct {
	MaxDatabasesPerOwner int
	ProvisionTimeout     time.Duration
	HealthCheckInterval  time.Duration
	CostCheckInterval    time.Duration
	Dialer               func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (o Options) withDefaults() Options {
	if o.MaxDatabasesPerOwner <= 0 {
		o.MaxDatabasesPerOwner = defaultMaxPerOwner
	}
	if o.ProvisionTimeout <= 0 {
		o.ProvisionTimeout = defaultProvisionTimeout
	}
	if o.HealthCheckInterval <= 0 {
		o.HealthCheckInterval = defaultHealthInterval
	}
	if o.CostCheckInterval <= 0 {
		o.CostCheckInterval = defaultCostInterval
	}
	if o.Dialer == nil {
		var d net.Dialer
		o.Dialer = d.DialContext
	}
	return o
}

// Service implements the §4.C ConfidentialDBManager operations.
type Service struct {
	store    Store
	gateway  *cloudgateway.Gateway
	creds    CredentialSource
	auditor  Auditor
	logger   *slog.Logger
	opts     Options
	locks    *keyedlock.Registry
}

// New constructs a Service.
func New(store Store, gateway *cloudgateway.Gateway, creds CredentialSource, auditor Auditor, logger *slog.Logger, opts Options) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		creds:   creds,
		auditor: auditor,
		logger:  logger,
		opts:    opts.withDefaults(),
		locks:   keyedlock.New(),
	}
}

// RunBackgroundLoops starts the idle/health and cost accrual loops (spec
// §4.C) on the given Clock, until ctx is cancelled.
func (s *Service) RunBackgroundLoops(ctx context.Context, clk clock.Clock) {
	clock.Every(ctx, clk, s.opts.HealthCheckInterval, s.runHealthCheck, clock.Options{}, s.logger)
	clock.Every(ctx, clk, s.opts.CostCheckInterval, s.runCostAccrual, clock.Options{}, s.logger)
}

// Provision validates the request, enforces the per-owner quota, and
// creates a pending record, returning the one-time plaintext password
// disclosure. Provisioning itself continues asynchronously.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	owner := strings.ToLower(req.Owner)

	if err := reqvalidate.Struct(req); err != nil {
		return ProvisionResult{}, err
	}
	if !namePattern.MatchString(req.Name) {
		return ProvisionResult{}, apierr.New(apierr.Validation, "name must match ^[a-z][a-z0-9_]{0,62}$")
	}
	spec, ok := tierSpec(req.Tier)
	if !ok {
		return ProvisionResult{}, apierr.New(apierr.Validation, fmt.Sprintf("unknown tier: %s", req.Tier))
	}

	existing := s.store.ListByOwner(owner)
	live := 0
	for _, db := range existing {
		if db.Status != StatusTerminated {
			live++
		}
	}
	if live >= s.opts.MaxDatabasesPerOwner {
		return ProvisionResult{}, apierr.New(apierr.Conflict, "maxDatabasesPerOwner quota exceeded")
	}

	password, err := generatePassword()
	if err != nil {
		return ProvisionResult{}, apierr.Wrap(apierr.Transient, "generating password", err)
	}

	now := time.Now().UTC()
	db := ConfidentialDB{
		ID:             fmt.Sprintf("nitro-db-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Owner:          owner,
		Name:           req.Name,
		Tier:           req.Tier,
		Status:         StatusPending,
		Region:         req.Region,
		Port:           defaultPort,
		Database:       req.Name,
		Username:       defaultUsername,
		PasswordHash:   hashPassword(password),
		CreatedAt:      now,
		LastActivityAt: now,
		IdleTimeoutMs:  req.IdleTimeoutMs,
		AutoTerminate:  req.AutoTerminate,
		CredentialID:   req.CredentialID,
		Provider:       req.Provider,
	}
	if db.IdleTimeoutMs < 60000 {
		db.IdleTimeoutMs = defaultIdleTimeoutMs
	}

	if err := s.store.Insert(db); err != nil {
		return ProvisionResult{}, apierr.Wrap(apierr.Transient, "persisting confidential db record", err)
	}
	telemetry.DBProvisionedTotal.WithLabelValues(string(req.Tier), "pending").Inc()
	s.auditor.Append("create", db.ID, owner, fmt.Sprintf("tier=%s region=%s", req.Tier, req.Region))

	placeholderConn := fmt.Sprintf("%s://%s:%s@pending/%s?tls=required", connectionScheme, db.Username, password, db.Database)

	go s.runProvisioning(context.Background(), db.ID, spec, password)

	return ProvisionResult{DB: db, PlaintextPassword: password, ConnectionString: placeholderConn}, nil
}

func (s *Service) runProvisioning(ctx context.Context, id string, spec TierSpec, password string) {
	started := time.Now()
	unlock := s.locks.Lock(id)
	db, ok := s.store.Get(id)
	if !ok {
		unlock()
		return
	}
	db.Status = StatusProvisioning
	_ = s.store.Update(db)
	unlock()

	fail := func(message string) {
		unlock := s.locks.Lock(id)
		defer unlock()
		cur, ok := s.store.Get(id)
		if !ok {
			return
		}
		cur.Status = StatusError
		cur.LastError = message
		_ = s.store.Update(cur)
		telemetry.DBProvisionedTotal.WithLabelValues(string(cur.Tier), "error").Inc()
		s.auditor.Append("create", id, cur.Owner, "error: "+message)
	}

	var decrypted vault.Decrypted
	if s.creds != nil {
		var err error
		decrypted, err = s.creds.GetDecrypted(ctx, db.CredentialID, db.Owner)
		if err != nil {
			fail("resolving owner credential: " + err.Error())
			return
		}
	}

	cloudInit := buildCloudInit(id, cnSuffix, spec)
	createReq := cloudgateway.CreateRequest{
		Provider:     cloudgateway.Provider(db.Provider),
		Name:         id,
		InstanceType: spec.InstanceType,
		Region:       db.Region,
		CloudInit:    cloudInit,
		Extensions: map[string]any{
			"enclave": cloudgateway.EnclaveOptions{
				Enabled:  true,
				MemoryMb: spec.EnclaveMemoryMb,
				Cpus:     spec.EnclaveCpus,
			},
			"secretEnv": map[string]string{"DWS_DB_PASSWORD": password},
		},
	}
	creds := cloudgateway.Credentials{APIKey: decrypted.APIKey, APISecret: decrypted.APISecret, ProjectID: decrypted.ProjectID}

	inst, err := s.gateway.Create(ctx, creds, createReq)
	if err != nil {
		fail("creating instance: " + err.Error())
		return
	}

	unlock = s.locks.Lock(id)
	db, _ = s.store.Get(id)
	db.InstanceID = inst.ID
	db.Status = StatusInitializing
	_ = s.store.Update(db)
	unlock()

	timeout := s.opts.ProvisionTimeout
	running, err := s.gateway.WaitRunning(ctx, cloudgateway.Provider(db.Provider), creds, inst.ID, timeout)
	if err != nil {
		_, _ = s.gateway.Delete(ctx, cloudgateway.Provider(db.Provider), creds, inst.ID)
		fail("waiting for instance to run: " + err.Error())
		return
	}
	if running.PublicIP == nil {
		_, _ = s.gateway.Delete(ctx, cloudgateway.Provider(db.Provider), creds, inst.ID)
		fail("instance running without a public IP")
		return
	}

	deadline := started.Add(timeout)
	addr := fmt.Sprintf("%s:%d", *running.PublicIP, defaultPort)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, tcpProbeTimeout)
		conn, dialErr := s.opts.Dialer(probeCtx, "tcp", addr)
		cancel()
		if dialErr == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			_, _ = s.gateway.Delete(ctx, cloudgateway.Provider(db.Provider), creds, inst.ID)
			fail("timed out waiting for listener port")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(tcpProbeInterval):
		}
	}

	now := time.Now().UTC()
	connString := fmt.Sprintf("%s://%s@%s:%d/%s?tls=required", connectionScheme, db.Username, *running.PublicIP, defaultPort, db.Database)

	unlock = s.locks.Lock(id)
	db, _ = s.store.Get(id)
	db.Status = StatusRunning
	db.PublicIP = *running.PublicIP
	if running.PrivateIP != nil {
		db.PrivateIP = *running.PrivateIP
	}
	db.ConnectionString = connString
	db.ProvisionedAt = &now
	db.LastActivityAt = now
	_ = s.store.Update(db)
	unlock()

	telemetry.DBProvisionedTotal.WithLabelValues(string(db.Tier), "running").Inc()
	telemetry.DBProvisionDuration.WithLabelValues(string(db.Tier)).Observe(time.Since(started).Seconds())
	s.auditor.Append("create", id, db.Owner, "provisioned: status=running")
}

// Start re-provisions a stopped database with a freshly generated password
// (spec §4.C: "regenerates password (prior hash invalidated)").
func (s *Service) Start(ctx context.Context, id, owner string) (ProvisionResult, error) {
	owner = strings.ToLower(owner)
	unlock := s.locks.Lock(id)

	db, ok := s.store.Get(id)
	if !ok {
		unlock()
		return ProvisionResult{}, apierr.New(apierr.NotFound, "confidential db not found")
	}
	if !strings.EqualFold(db.Owner, owner) {
		unlock()
		return ProvisionResult{}, apierr.New(apierr.Unauthorized, "owner mismatch")
	}
	if db.Status != StatusStopped {
		unlock()
		return ProvisionResult{}, apierr.New(apierr.Conflict, "start is only valid from stopped")
	}

	password, err := generatePassword()
	if err != nil {
		unlock()
		return ProvisionResult{}, apierr.Wrap(apierr.Transient, "generating password", err)
	}
	db.PasswordHash = hashPassword(password)
	db.Status = StatusPending
	if err := s.store.Update(db); err != nil {
		unlock()
		return ProvisionResult{}, apierr.Wrap(apierr.Transient, "persisting confidential db record", err)
	}
	unlock()

	spec, _ := tierSpec(db.Tier)
	go s.runProvisioning(context.Background(), id, spec, password)

	placeholderConn := fmt.Sprintf("%s://%s:%s@pending/%s?tls=required", connectionScheme, db.Username, password, db.Database)
	return ProvisionResult{DB: db, PlaintextPassword: password, ConnectionString: placeholderConn}, nil
}

// Stop deletes the instance and clears network/connection fields (spec
// §4.C). Valid only from running|idle.
func (s *Service) Stop(ctx context.Context, id, owner string) error {
	owner = strings.ToLower(owner)
	unlock := s.locks.Lock(id)
	defer unlock()

	db, ok := s.store.Get(id)
	if !ok {
		return apierr.New(apierr.NotFound, "confidential db not found")
	}
	if !strings.EqualFold(db.Owner, owner) {
		return apierr.New(apierr.Unauthorized, "owner mismatch")
	}
	if db.Status != StatusRunning && db.Status != StatusIdle {
		return apierr.New(apierr.Conflict, "stop is only valid from running or idle")
	}

	if db.InstanceID != "" && s.gateway != nil {
		creds, err := s.resolveCredentials(ctx, db)
		if err == nil {
			_, _ = s.gateway.Delete(ctx, cloudgateway.Provider(db.Provider), creds, db.InstanceID)
		}
	}

	db.Status = StatusStopped
	db.InstanceID = ""
	db.PublicIP = ""
	db.PrivateIP = ""
	db.ConnectionString = ""
	if err := s.store.Update(db); err != nil {
		return apierr.Wrap(apierr.Transient, "persisting confidential db record", err)
	}
	s.auditor.Append("delete", id, owner, "stopped")
	return nil
}

// Terminate is idempotent: deletes the instance (if any), sets terminated,
// and clears instanceId permanently (spec §3: terminal states have
// instanceId=null and terminatedAt!=null; no transition out of terminated).
func (s *Service) Terminate(ctx context.Context, id, owner string) error {
	owner = strings.ToLower(owner)
	unlock := s.locks.Lock(id)
	defer unlock()

	db, ok := s.store.Get(id)
	if !ok {
		return apierr.New(apierr.NotFound, "confidential db not found")
	}
	if !strings.EqualFold(db.Owner, owner) {
		return apierr.New(apierr.Unauthorized, "owner mismatch")
	}
	if db.Status == StatusTerminated {
		return nil
	}

	if db.InstanceID != "" && s.gateway != nil {
		creds, err := s.resolveCredentials(ctx, db)
		if err == nil {
			_, _ = s.gateway.Delete(ctx, cloudgateway.Provider(db.Provider), creds, db.InstanceID)
		}
	}

	now := time.Now().UTC()
	db.Status = StatusTerminated
	db.InstanceID = ""
	db.PublicIP = ""
	db.PrivateIP = ""
	db.ConnectionString = ""
	db.TerminatedAt = &now
	if err := s.store.Update(db); err != nil {
		return apierr.Wrap(apierr.Transient, "persisting confidential db record", err)
	}
	telemetry.DBTerminatedTotal.Inc()
	s.auditor.Append("delete", id, owner, "terminated")
	return nil
}

// RecordActivity updates lastActivityAt and lifts idle->running (spec §4.C).
func (s *Service) RecordActivity(id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	db, ok := s.store.Get(id)
	if !ok {
		return apierr.New(apierr.NotFound, "confidential db not found")
	}
	db.LastActivityAt = time.Now().UTC()
	if db.Status == StatusIdle {
		db.Status = StatusRunning
	}
	return s.store.Update(db)
}

// List returns an owner's databases, or every database when owner is empty
// (spec §6 admin CLI "db list").
func (s *Service) List(owner string) []ConfidentialDB {
	if owner == "" {
		return s.store.ListAll()
	}
	return s.store.ListByOwner(owner)
}

// GetStats returns aggregated tier/region counts and total cost (spec §4.C).
func (s *Service) GetStats() Stats {
	all := s.store.ListAll()
	stats := Stats{ByTier: make(map[Tier]int), ByRegion: make(map[string]int)}
	for _, db := range all {
		stats.TotalCount++
		stats.ByTier[db.Tier]++
		stats.ByRegion[db.Region]++
		stats.TotalCostUsd += db.TotalCostUsd
	}
	return stats
}

func (s *Service) resolveCredentials(ctx context.Context, db ConfidentialDB) (cloudgateway.Credentials, error) {
	if s.creds == nil {
		return cloudgateway.Credentials{}, nil
	}
	decrypted, err := s.creds.GetDecrypted(ctx, db.CredentialID, db.Owner)
	if err != nil {
		return cloudgateway.Credentials{}, err
	}
	return cloudgateway.Credentials{APIKey: decrypted.APIKey, APISecret: decrypted.APISecret, ProjectID: decrypted.ProjectID}, nil
}

// runHealthCheck is the idle/health background loop (spec §4.C).
func (s *Service) runHealthCheck(ctx context.Context) error {
	for _, db := range s.store.ListAll() {
		if db.Status != StatusRunning && db.Status != StatusIdle {
			continue
		}
		if time.Since(db.LastActivityAt) <= time.Duration(db.IdleTimeoutMs)*time.Millisecond {
			continue
		}
		if db.AutoTerminate {
			if err := s.Terminate(ctx, db.ID, db.Owner); err != nil && s.logger != nil {
				s.logger.Error("confdb: auto-terminate failed", "id", db.ID, "error", err)
			}
			continue
		}
		unlock := s.locks.Lock(db.ID)
		cur, ok := s.store.Get(db.ID)
		if ok && cur.Status == StatusRunning {
			cur.Status = StatusIdle
			if err := s.store.Update(cur); err == nil {
				telemetry.DBIdleTransitionsTotal.Inc()
			}
		}
		unlock()
	}
	return nil
}

// runCostAccrual is the cost loop (spec §4.C): billedHours =
// ceil((now-provisionedAt)/hour); totalCostUsd = billedHours * pricePerHour.
func (s *Service) runCostAccrual(ctx context.Context) error {
	for _, db := range s.store.ListAll() {
		if db.Status != StatusRunning && db.Status != StatusIdle {
			continue
		}
		if db.ProvisionedAt == nil {
			continue
		}
		spec, ok := tierSpec(db.Tier)
		if !ok {
			continue
		}
		unlock := s.locks.Lock(db.ID)
		cur, ok := s.store.Get(db.ID)
		if ok && cur.ProvisionedAt != nil {
			hours := int(math.Ceil(time.Since(*cur.ProvisionedAt).Hours()))
			if hours < 0 {
				hours = 0
			}
			cur.BilledHours = hours
			cur.TotalCostUsd = float64(hours) * spec.PricePerHourUsd
			_ = s.store.Update(cur)
		}
		unlock()
	}
	return nil
}
