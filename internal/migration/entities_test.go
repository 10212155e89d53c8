package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostConnectionDefaultsAndString(t *testing.T) {
	hostResult := NewHostConnection("db.example.com", "", 0)
	require.True(t, hostResult.IsOk())
	host := hostResult.Must()
	assert.Equal(t, "root", host.Username)
	assert.Equal(t, 22, host.Port)
	assert.Equal(t, "root@db.example.com", host.String())
	assert.Equal(t, "ssh://root@db.example.com:22", host.SSHURL())
}

func TestHostConnectionNonDefaultPort(t *testing.T) {
	host := NewHostConnection("db.example.com", "deploy", 2222).Must()
	assert.Equal(t, "deploy@db.example.com:2222", host.String())
}

func TestHostConnectionRejectsBadHostname(t *testing.T) {
	hostResult := NewHostConnection("not a hostname!", "root", 22)
	assert.True(t, hostResult.IsErr())
	assert.Equal(t, "VALIDATION_ERROR", hostResult.Err().Code)
}

func TestParseHostConnection(t *testing.T) {
	host := ParseHostConnection("deploy@db.example.com:2200").Must()
	assert.Equal(t, "deploy", host.Username)
	assert.Equal(t, "db.example.com", host.Hostname)
	assert.Equal(t, 2200, host.Port)

	plain := ParseHostConnection("db.example.com").Must()
	assert.Equal(t, "root", plain.Username)
	assert.Equal(t, 22, plain.Port)

	bad := ParseHostConnection("db.example.com:notaport")
	assert.True(t, bad.IsErr())
}

func TestHostConnectionStringParseRoundTrip(t *testing.T) {
	nonDefaultPort := NewHostConnection("db.example.com", "deploy", 2222).Must()
	reparsed := ParseHostConnection(nonDefaultPort.String()).Must()
	assert.Equal(t, nonDefaultPort, reparsed)

	defaultPort := NewHostConnection("db.example.com", "root", 22).Must()
	reparsedDefault := ParseHostConnection(defaultPort.String()).Must()
	assert.Equal(t, defaultPort, reparsedDefault)
}

func TestHostConnectionIsLocalhost(t *testing.T) {
	assert.True(t, Localhost().IsLocalhost())
	assert.True(t, NewHostConnection("127.0.0.1", "root", 22).Must().IsLocalhost())
	assert.False(t, NewHostConnection("db.example.com", "root", 22).Must().IsLocalhost())
}

func TestMigrationStepLifecycle(t *testing.T) {
	step := NewMigrationStep("validation", StepValidation)
	assert.Equal(t, StepStatusPending, step.Status)

	start := time.Now()
	step.Start(start)
	assert.True(t, step.IsRunning())

	end := start.Add(5 * time.Second)
	step.Complete(end, map[string]any{"ok": true})
	assert.True(t, step.IsCompleted())
	require.NotNil(t, step.Duration())
	assert.InDelta(t, 5.0, *step.Duration(), 0.001)
	assert.Equal(t, true, step.Details["ok"])
}

func TestMigrationStepFailAndSkip(t *testing.T) {
	step := NewMigrationStep("data_transfer", StepDataTransfer)
	step.Start(time.Now())
	step.Fail(time.Now(), "rsync exited 23", nil)
	assert.True(t, step.IsFailed())
	assert.Equal(t, "rsync exited 23", step.ErrorMessage)

	skipped := NewMigrationStep("cleanup", StepCleanup)
	skipped.Skip(time.Now(), "no snapshots to clean")
	assert.Equal(t, StepStatusSkipped, skipped.Status)
	assert.Equal(t, "no snapshots to clean", skipped.Details["skip_reason"])
}

func TestMigrationStepUpdateProgressClamps(t *testing.T) {
	step := NewMigrationStep("verification", StepVerification)
	step.UpdateProgress(-10, "")
	assert.Equal(t, 0.0, step.ProgressPercentage)
	step.UpdateProgress(150, "")
	assert.Equal(t, 100.0, step.ProgressPercentage)
}

func newTestMigration() *Migration {
	return NewMigration("myapp", Localhost(), NewHostConnection("target.example.com", "root", 22).Must(), "/srv/myapp/docker-compose.yml", "/srv/myapp", time.Now())
}

func TestMigrationLifecycle(t *testing.T) {
	m := newTestMigration()
	assert.Equal(t, StatusPending, m.Status)
	assert.False(t, m.IsRunning())
	assert.False(t, m.CanBeCancelled())

	m.Start(time.Now())
	assert.Equal(t, StatusPreparing, m.Status)
	assert.True(t, m.IsRunning())
	assert.True(t, m.CanBeCancelled())

	m.Complete(time.Now())
	assert.True(t, m.IsCompleted())
	assert.False(t, m.IsRunning())
}

func TestMigrationFailAndRetry(t *testing.T) {
	m := newTestMigration()
	m.Start(time.Now())
	m.Fail(time.Now(), "target unreachable")
	assert.True(t, m.IsFailed())
	assert.True(t, m.CanBeRetried())
	assert.Equal(t, "target unreachable", m.ErrorMessage)
}

func TestMigrationProgressPercentageAveragesSteps(t *testing.T) {
	m := newTestMigration()
	s1 := NewMigrationStep("a", StepValidation)
	s1.ProgressPercentage = 100
	s2 := NewMigrationStep("b", StepDataTransfer)
	s2.ProgressPercentage = 50
	m.AddStep(s1)
	m.AddStep(s2)
	assert.Equal(t, 75.0, m.ProgressPercentage())
}

func TestMigrationCurrentAndFailedStep(t *testing.T) {
	m := newTestMigration()
	running := NewMigrationStep("data_transfer", StepDataTransfer)
	running.Start(time.Now())
	m.AddStep(running)

	assert.Equal(t, "data_transfer", m.CurrentStep().Name)
	assert.Nil(t, m.FailedStep())

	running.Fail(time.Now(), "disk full", nil)
	m.Steps[0] = running
	assert.Nil(t, m.CurrentStep())
	require.NotNil(t, m.FailedStep())
	assert.Equal(t, "disk full", m.FailedStep().ErrorMessage)
}

func TestMigrationEstimatedRemainingSeconds(t *testing.T) {
	m := newTestMigration()
	now := time.Now()
	m.Start(now)

	completed := NewMigrationStep("validation", StepValidation)
	completed.Start(now)
	completed.Complete(now.Add(10*time.Second), nil)
	m.AddStep(completed)

	pending := NewMigrationStep("data_transfer", StepDataTransfer)
	m.AddStep(pending)

	remaining := m.EstimatedRemainingSeconds()
	require.NotNil(t, remaining)
	assert.InDelta(t, 10.0, *remaining, 0.001)
}

func TestMigrationEstimatedRemainingSecondsNilBeforeAnyCompletion(t *testing.T) {
	m := newTestMigration()
	m.Start(time.Now())
	m.AddStep(NewMigrationStep("validation", StepValidation))
	assert.Nil(t, m.EstimatedRemainingSeconds())
}

func TestMigrationSummaryShape(t *testing.T) {
	m := newTestMigration()
	summary := m.Summary()
	assert.Equal(t, m.ID, summary["id"])
	assert.Equal(t, "pending", summary["status"])
	assert.Equal(t, "root@target.example.com", summary["target_host"])
}

func TestMigrationMetadata(t *testing.T) {
	m := newTestMigration()
	assert.Equal(t, "tank", m.GetMetadata("zfs_pool", "tank"))
	m.AddMetadata("zfs_pool", "rpool")
	assert.Equal(t, "rpool", m.GetMetadata("zfs_pool", "tank"))
}
