package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMigration(name string) *Migration {
	target := NewHostConnection("target.example.com", "root", 22).Must()
	return NewMigration(name, Localhost(), target, "/srv/"+name+"/docker-compose.yml", "/srv/"+name, time.Now())
}

func TestRepositoryCreateAndFindByID(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	m := newRepoMigration("app1")

	createResult := repo.Create(m)
	require.True(t, createResult.IsOk())

	found := repo.FindByID(m.ID)
	require.True(t, found.IsOk())
	assert.Equal(t, m.ID, found.Must().ID)
}

func TestRepositoryCreateRejectsDuplicateName(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	repo.Create(newRepoMigration("dup"))

	second := newRepoMigration("dup")
	createResult := repo.Create(second)
	assert.True(t, createResult.IsErr())
	assert.Equal(t, "MIGRATION_NAME_TAKEN", createResult.Err().Code)
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	findResult := repo.FindByID("does-not-exist")
	assert.True(t, findResult.IsErr())
	assert.Equal(t, "MIGRATION_NOT_FOUND", findResult.Err().Code)
}

func TestRepositoryListVariants(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	running := newRepoMigration("running")
	running.Start(time.Now())
	repo.Create(running)

	completed := newRepoMigration("completed")
	completed.Start(time.Now())
	completed.Complete(time.Now())
	repo.Create(completed)

	failed := newRepoMigration("failed")
	failed.Start(time.Now())
	failed.Fail(time.Now(), "boom")
	repo.Create(failed)

	assert.Len(t, repo.ListAll(), 3)
	assert.Len(t, repo.ListActive(), 1)
	assert.Len(t, repo.ListCompleted(), 1)
	assert.Len(t, repo.ListFailed(), 1)
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	m := newRepoMigration("updatable")
	repo.Create(m)

	m.Status = StatusPreparing
	updateResult := repo.Update(m)
	require.True(t, updateResult.IsOk())

	found := repo.FindByID(m.ID).Must()
	assert.Equal(t, StatusPreparing, found.Status)

	deleteResult := repo.Delete(m.ID)
	require.True(t, deleteResult.IsOk())
	assert.True(t, repo.FindByID(m.ID).IsErr())
}

func TestRepositoryAddAndUpdateStep(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	m := newRepoMigration("steps")
	repo.Create(m)

	step := NewMigrationStep("validation", StepValidation)
	require.True(t, repo.AddStep(m.ID, step).IsOk())

	step.Status = StepStatusCompleted
	require.True(t, repo.UpdateStep(m.ID, step).IsOk())

	found := repo.FindByID(m.ID).Must()
	require.Len(t, found.Steps, 1)
	assert.Equal(t, StepStatusCompleted, found.Steps[0].Status)

	unknown := NewMigrationStep("verification", StepVerification)
	assert.True(t, repo.UpdateStep(m.ID, unknown).IsErr())
}

func TestRepositoryLogsAndComposeContent(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	m := newRepoMigration("logged")
	repo.Create(m)

	repo.AppendLog(m.ID, LogEntry{Timestamp: time.Now(), Level: "info", Message: "started"})
	logs := repo.GetMigrationLogs(m.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "started", logs[0].Message)

	assert.True(t, repo.GetComposeContent(m.ID).IsErr())
	require.True(t, repo.StoreComposeContent(m.ID, ComposeContent{ComposeYAML: "services: {}"}).IsOk())
	content := repo.GetComposeContent(m.ID).Must()
	assert.Equal(t, "services: {}", content.ComposeYAML)
}

func TestRepositoryCleanupOldMigrations(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	old := newRepoMigration("old")
	old.Start(time.Now())
	old.Complete(time.Now())
	oldCompletedAt := time.Now().Add(-48 * time.Hour)
	old.CompletedAt = &oldCompletedAt
	repo.Create(old)

	recent := newRepoMigration("recent")
	recent.Start(time.Now())
	recent.Complete(time.Now())
	repo.Create(recent)

	oldFailed := newRepoMigration("old-failed")
	oldFailed.Start(time.Now())
	oldFailed.Fail(time.Now(), "boom")
	oldFailedCompletedAt := time.Now().Add(-48 * time.Hour)
	oldFailed.CompletedAt = &oldFailedCompletedAt
	repo.Create(oldFailed)

	removed := repo.CleanupOldMigrations(1)
	assert.Equal(t, 1, removed)
	assert.True(t, repo.FindByID(old.ID).IsErr())
	assert.True(t, repo.FindByID(recent.ID).IsOk())
	assert.True(t, repo.FindByID(oldFailed.ID).IsOk(), "failed migrations are kept regardless of age")
}
