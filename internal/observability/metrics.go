package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransferBytes tracks bytes transferred during a migration's
	// data_transfer step.
	TransferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdock_transfer_bytes_total",
			Help: "Total bytes transferred during migrations",
		},
		[]string{"method", "target_host"},
	)

	// StepDuration tracks the wall-clock duration of each migration step.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdock_step_duration_seconds",
			Help:    "Duration of migration steps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"step_type", "status"},
	)

	// ActiveMigrations tracks currently running migrations.
	ActiveMigrations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transdock_active_migrations",
			Help: "Number of currently active migrations",
		},
	)

	// MigrationOutcomes tracks migration terminal outcomes.
	MigrationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdock_migrations_total",
			Help: "Total number of migrations by terminal status",
		},
		[]string{"status", "transfer_method"},
	)

	// ZFSOperations tracks zfs/zpool subcommand invocations.
	ZFSOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdock_zfs_operations_total",
			Help: "Total number of zfs/zpool command executions",
		},
		[]string{"subcommand", "status"},
	)

	// ZFSOperationDuration tracks zfs/zpool subcommand latency.
	ZFSOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdock_zfs_operation_duration_seconds",
			Help:    "Duration of zfs/zpool command executions",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"subcommand"},
	)

	// DatasetUsedBytes tracks the reported used size of datasets touched
	// by a migration.
	DatasetUsedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transdock_dataset_used_bytes",
			Help:    "Used size of datasets observed during migrations",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 20),
		},
		[]string{"dataset"},
	)

	// ChecksumVerifications tracks verify_transfer outcomes.
	ChecksumVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdock_checksum_verifications_total",
			Help: "Total number of post-transfer checksum verifications",
		},
		[]string{"result"},
	)

	// RetryAttempts tracks retry attempts for failed command executions.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transdock_retry_attempts_total",
			Help: "Total number of command retry attempts",
		},
		[]string{"command", "outcome"},
	)

	// CancellationLatency tracks the latency between a cancel() request
	// and the migration worker's termination.
	CancellationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transdock_cancellation_latency_seconds",
			Help:    "Latency between cancel() request and worker termination",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

// Metrics provides a narrow, dependency-injectable facade over the
// package-level collectors above.
type Metrics struct{}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordTransfer records bytes moved during a data_transfer step.
func (m *Metrics) RecordTransfer(method, targetHost string, bytes float64) {
	TransferBytes.WithLabelValues(method, targetHost).Add(bytes)
}

// RecordStep records a completed step's duration and outcome.
func (m *Metrics) RecordStep(stepType, status string, seconds float64) {
	StepDuration.WithLabelValues(stepType, status).Observe(seconds)
}

// RecordMigration records a migration's terminal outcome.
func (m *Metrics) RecordMigration(status, transferMethod string) {
	MigrationOutcomes.WithLabelValues(status, transferMethod).Inc()
}

// SetActiveMigrations sets the number of active migrations.
func (m *Metrics) SetActiveMigrations(count float64) {
	ActiveMigrations.Set(count)
}

// RecordZFSOperation records a single zfs/zpool invocation.
func (m *Metrics) RecordZFSOperation(subcommand, status string, seconds float64) {
	ZFSOperations.WithLabelValues(subcommand, status).Inc()
	ZFSOperationDuration.WithLabelValues(subcommand).Observe(seconds)
}
