package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Vault metrics.
var (
	CredentialsStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "vault", Name: "credentials_stored_total",
			Help: "Total credentials successfully stored, by provider."},
		[]string{"provider"},
	)
	CredentialVerifyFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "vault", Name: "verify_failed_total",
			Help: "Total credential verification failures, by provider."},
		[]string{"provider"},
	)
	CredentialAccessDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "vault", Name: "access_denied_total",
			Help: "Total unauthorized getDecrypted attempts."},
	)
)

// ConfidentialDBManager metrics.
var (
	DBProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "confdb", Name: "provisioned_total",
			Help: "Total confidential database provisioning attempts, by tier and outcome."},
		[]string{"tier", "outcome"},
	)
	DBProvisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "dws", Subsystem: "confdb", Name: "provision_duration_seconds",
			Help: "Time from provision start to running/error.", Buckets: prometheus.DefBuckets},
		[]string{"tier"},
	)
	DBTerminatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "confdb", Name: "terminated_total",
			Help: "Total confidential databases terminated (explicit or idle-auto)."},
	)
	DBIdleTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "confdb", Name: "idle_transitions_total",
			Help: "Total running->idle transitions from the idle detection loop."},
	)
)

// Storage benchmarker metrics.
var (
	BenchmarksRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "storage", Name: "benchmarks_run_total",
			Help: "Total benchmarks executed, by provider type and classification."},
		[]string{"provider_type", "classification"},
	)
	BenchmarkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "dws", Subsystem: "storage", Name: "benchmark_duration_seconds",
			Help: "Benchmark run wall-clock duration.", Buckets: prometheus.DefBuckets},
		[]string{"provider_type"},
	)
	ReputationScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "dws", Subsystem: "storage", Name: "reputation_score",
			Help: "Current reputation score per storage provider."},
		[]string{"provider_id"},
	)
)

// Swarm metrics.
var (
	SwarmTransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "swarm", Name: "transfers_total",
			Help: "Total content transfers recorded, by outcome."},
		[]string{"outcome"},
	)
	SwarmPeersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "dws", Subsystem: "swarm", Name: "peers_connected",
			Help: "Number of currently connected peers."},
	)
	SwarmRebalanceRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "swarm", Name: "rebalance_runs_total",
			Help: "Total rebalance loop iterations."},
	)
)

// AuditLog metrics.
var (
	AuditEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "audit", Name: "entries_total",
			Help: "Total audit entries appended, by action."},
		[]string{"action"},
	)
	AuditEntriesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dws", Subsystem: "audit", Name: "entries_dropped_total",
			Help: "Total audit entries dropped because the ring buffer was full."},
	)
)

// All returns every control-plane metric for registration with a
// prometheus.Registry.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CredentialsStoredTotal,
		CredentialVerifyFailedTotal,
		CredentialAccessDeniedTotal,
		DBProvisionedTotal,
		DBProvisionDuration,
		DBTerminatedTotal,
		DBIdleTransitionsTotal,
		BenchmarksRunTotal,
		BenchmarkDuration,
		ReputationScore,
		SwarmTransfersTotal,
		SwarmPeersConnected,
		SwarmRebalanceRunsTotal,
		AuditEntriesTotal,
		AuditEntriesDroppedTotal,
	}
}

// NewRegistry creates a prometheus.Registry with every control-plane
// collector already registered, mirroring the teacher's
// coretelemetry.NewMetricsRegistry composition helper.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
