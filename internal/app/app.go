// Package app is the composition root: it wires every domain service
// (vault, confdb, storage, swarm, authgw) onto the shared infrastructure
// (statestore, redis, cloudgateway, chaingateway, clock, telemetry) and
// starts their background loops, mirroring the teacher's internal/app.Run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/audit"
	"github.com/dws/control-plane/internal/authgw"
	"github.com/dws/control-plane/internal/chaingateway"
	"github.com/dws/control-plane/internal/clock"
	"github.com/dws/control-plane/internal/cloudgateway"
	"github.com/dws/control-plane/internal/config"
	"github.com/dws/control-plane/internal/confdb"
	"github.com/dws/control-plane/internal/statestore"
	"github.com/dws/control-plane/internal/storage"
	"github.com/dws/control-plane/internal/swarm"
	"github.com/dws/control-plane/internal/telemetry"
	"github.com/dws/control-plane/internal/vault"
	"github.com/redis/go-redis/v9"
)

// App aggregates the constructed domain services, for cmd/dwsctl to drive
// directly without redoing the wiring.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Vault   *vault.Service
	Confdb  *confdb.Service
	Storage *storage.Service
	Swarm   *swarm.Coordinator
	Auth    *authgw.Gateway
	Audit   *audit.Log

	store statestore.StateStore
	redis *redis.Client
}

// New constructs every domain service from cfg, applying the swarm schema
// and connecting to Postgres/Redis. Callers must call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := statestore.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to state store: %w", err)
	}

	rdb, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if err := statestore.RunSwarmMigrations(cfg.DatabaseURL, cfg.MigrationsSwarmDir); err != nil {
		store.Close()
		_ = rdb.Close()
		return nil, apierr.Wrap(apierr.Transient, "running swarm migrations", err)
	}
	logger.Info("swarm migrations applied", "dir", cfg.MigrationsSwarmDir)

	if err := applySchema(ctx, store); err != nil {
		store.Close()
		_ = rdb.Close()
		return nil, err
	}

	auditLog := audit.New(cfg.AuditLogCapacity)

	masterKey := []byte(cfg.VaultMasterKey)
	if len(masterKey) == 0 {
		logger.Warn("vault: DWS_VAULT_MASTER_KEY is unset, using an insecure generated dev key")
		masterKey = []byte("dev-only-insecure-master-key-00")
	}
	vaultSvc := vault.New(newVaultStore(store), auditLog, masterKey, vault.Endpoints{})

	cloudGW := cloudgateway.NewDefaultGateway(cloudgateway.Endpoints{})

	confdbSvc := confdb.New(newConfdbStore(store), cloudGW, vaultSvc, auditLog, logger, confdb.Options{
		MaxDatabasesPerOwner: cfg.MaxDatabasesPerOwner,
		ProvisionTimeout:     config.Duration(cfg.ProvisionTimeout, 10*time.Minute),
		HealthCheckInterval:  config.Duration(cfg.DBHealthCheckInterval, 30*time.Second),
		CostCheckInterval:    config.Duration(cfg.DBCostCheckInterval, 60*time.Second),
	})

	chainGW := chaingateway.NewBestEffort(noopChainGateway{}, nil, logger)

	storageSvc := storage.New(newStorageStore(store), storage.NewHTTPRunner(), chainGW, logger, storage.Options{
		SmallFileSizeKb:          cfg.SmallFileSizeKb,
		MediumFileSizeMb:         cfg.MediumFileSizeMb,
		LargeFileSizeMb:          cfg.LargeFileSizeMb,
		IOPSTestDuration:         config.Duration(cfg.IopsTestDuration, 30*time.Second),
		ThroughputTestDuration:   config.Duration(cfg.ThroughputTestDuration, 60*time.Second),
		LatencyTestSamples:       cfg.LatencyTestSamples,
		WarnDeviationPercent:     cfg.WarnDeviationPercent,
		FailDeviationPercent:     cfg.FailDeviationPercent,
		SlashDeviationPercent:    cfg.SlashDeviationPercent,
		LowReputationInterval:    time.Duration(cfg.LowReputationIntervalDays) * 24 * time.Hour,
		MediumReputationInterval: time.Duration(cfg.MediumReputationIntervalDays) * 24 * time.Hour,
		HighReputationInterval:   time.Duration(cfg.HighReputationIntervalDays) * 24 * time.Hour,
		RandomSpotCheckPercent:   cfg.RandomSpotCheckPercent,
		MaxConcurrentBenchmarks:  cfg.MaxConcurrentBenchmarks,
		BenchmarkTimeout:         config.Duration(cfg.BenchmarkTimeout, 5*time.Minute),
	})

	swarmSelf := swarm.Self{NodeID: cfg.SwarmNodeID, Region: cfg.SwarmRegion}
	swarmCoord := swarm.New(swarmSelf, newSwarmStore(store), nil, chaingateway.NewBestEffort(noopChainGateway{}, nil, logger), logger, swarm.Options{
		HealthCheckInterval:   config.Duration(cfg.SwarmHealthCheckInterval, 30*time.Second),
		RebalanceInterval:     config.Duration(cfg.RebalanceInterval, 60*time.Second),
		MinPeersPerContent:    cfg.MinPeersPerContent,
		TargetPeersPerContent: cfg.TargetPeersPerContent,
		MaxPeerConnections:    cfg.MaxPeerConnections,
		MaxConcurrentUploads:  cfg.MaxConcurrentUploads,
		MaxConcurrentDownloads: cfg.MaxConcurrentDownloads,
	})
	if swarmSelf.NodeID != "" {
		if err := swarmCoord.Start(swarm.Peer{
			NodeID:     swarmSelf.NodeID,
			Endpoint:   cfg.SwarmEndpoint,
			Region:     swarmSelf.Region,
			Reputation: 1000,
			Connected:  true,
		}); err != nil {
			logger.Warn("swarm: registering self peer failed", "error", err)
		}
	}

	authGW := authgw.New(rdb, authgw.Options{
		MaxRequestsPerWindow: cfg.AuthMaxRequestsPerWindow,
		Window:               config.Duration(cfg.AuthRateLimitWindow, time.Minute),
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Vault:   vaultSvc,
		Confdb:  confdbSvc,
		Storage: storageSvc,
		Swarm:   swarmCoord,
		Auth:    authGW,
		Audit:   auditLog,
		store:   store,
		redis:   rdb,
	}, nil
}

// applySchema lays down the vault/confdb/storage domain tables. The swarm
// schema is versioned separately via statestore.RunSwarmMigrations, called
// from New before this, mirroring the teacher's RunGlobalMigrations-then-
// app-wiring ordering.
func applySchema(ctx context.Context, store statestore.StateStore) error {
	for _, ddl := range []string{vaultSchema, confdbSchema, storageSchema} {
		if err := store.Run(ctx, ddl); err != nil {
			return apierr.Wrap(apierr.Transient, "applying schema", err)
		}
	}
	return nil
}

// RunBackgroundLoops starts every service's periodic background work and
// blocks until ctx is cancelled.
func (a *App) RunBackgroundLoops(ctx context.Context) {
	clk := clock.Real{}
	go a.Confdb.RunBackgroundLoops(ctx, clk)
	go a.Storage.RunBackgroundLoops(ctx, clk)
	go a.Swarm.RunBackgroundLoops(ctx, clk)
	<-ctx.Done()
}

// Close releases infrastructure connections.
func (a *App) Close() {
	a.store.Close()
	if err := a.redis.Close(); err != nil {
		a.Logger.Error("closing redis", "error", err)
	}
}
