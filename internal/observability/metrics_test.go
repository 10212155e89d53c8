package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransferIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.RecordTransfer("zfs_send", "backup-host", 1024)
	got := testutil.ToFloat64(TransferBytes.WithLabelValues("zfs_send", "backup-host"))
	assert.GreaterOrEqual(t, got, float64(1024))
}

func TestRecordMigrationIncrementsOutcome(t *testing.T) {
	m := NewMetrics()
	m.RecordMigration("completed", "zfs_send")
	got := testutil.ToFloat64(MigrationOutcomes.WithLabelValues("completed", "zfs_send"))
	assert.GreaterOrEqual(t, got, float64(1))
}

func TestSetActiveMigrations(t *testing.T) {
	m := NewMetrics()
	m.SetActiveMigrations(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(ActiveMigrations))
}

func TestRecordZFSOperation(t *testing.T) {
	m := NewMetrics()
	m.RecordZFSOperation("snapshot", "success", 0.5)
	got := testutil.ToFloat64(ZFSOperations.WithLabelValues("snapshot", "success"))
	assert.GreaterOrEqual(t, got, float64(1))
}
