package migration

import (
	"sort"
	"sync"
	"time"

	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"go.uber.org/zap"
)

// ComposeContent is the stored form of a migration's compose stack.
type ComposeContent struct {
	ComposeYAML string
	EnvFile     string
	ProjectName string
}

// LogEntry is a single timestamped record from a migration's history,
// surfaced by GetMigrationLogs.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Repository is the persistence boundary for Migration aggregates. The
// orchestrator depends on this interface, never on a concrete store.
type Repository interface {
	Create(m *Migration) result.Result[*Migration]
	FindByID(id string) result.Result[*Migration]
	FindByName(name string) result.Result[*Migration]
	ListAll() []*Migration
	ListActive() []*Migration
	ListCompleted() []*Migration
	ListFailed() []*Migration
	Update(m *Migration) result.Result[*Migration]
	Delete(id string) result.Result[bool]
	UpdateStatus(id string, status MigrationStatus) result.Result[bool]
	AddStep(id string, step MigrationStep) result.Result[bool]
	UpdateStep(id string, step MigrationStep) result.Result[bool]
	AppendLog(id string, entry LogEntry)
	GetMigrationLogs(id string) []LogEntry
	CleanupOldMigrations(keepDays int) int
	StoreComposeContent(id string, content ComposeContent) result.Result[bool]
	GetComposeContent(id string) result.Result[ComposeContent]
}

// InMemoryRepository is a mutex-guarded map-backed Repository. It is
// the only Repository implementation shipped today; a persistent
// implementation (e.g. backed by DatabaseURL) would satisfy the same
// interface without orchestrator changes.
type InMemoryRepository struct {
	mu         sync.RWMutex
	migrations map[string]*Migration
	compose    map[string]ComposeContent
	logs       map[string][]LogEntry
	logger     *observability.Logger
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository(logger *observability.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		migrations: make(map[string]*Migration),
		compose:    make(map[string]ComposeContent),
		logs:       make(map[string][]LogEntry),
		logger:     logger,
	}
}

func (r *InMemoryRepository) Create(m *Migration) result.Result[*Migration] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.migrations[m.ID]; exists {
		return result.Fail[*Migration](result.AlreadyExists("MIGRATION_ALREADY_EXISTS", "migration with this id already exists"))
	}
	for _, existing := range r.migrations {
		if existing.Name == m.Name {
			return result.Fail[*Migration](result.AlreadyExists("MIGRATION_NAME_TAKEN", "a migration named "+m.Name+" already exists"))
		}
	}

	r.migrations[m.ID] = m
	if r.logger != nil {
		r.logger.Info("migration created", zap.String("migration_id", m.ID), zap.String("name", m.Name))
	}
	return result.Ok(m)
}

func (r *InMemoryRepository) FindByID(id string) result.Result[*Migration] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.migrations[id]
	if !ok {
		return result.Fail[*Migration](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	return result.Ok(m)
}

func (r *InMemoryRepository) FindByName(name string) result.Result[*Migration] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.migrations {
		if m.Name == name {
			return result.Ok(m)
		}
	}
	return result.Fail[*Migration](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+name))
}

func (r *InMemoryRepository) ListAll() []*Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByCreatedAt(r.migrations, nil)
}

func (r *InMemoryRepository) ListActive() []*Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByCreatedAt(r.migrations, func(m *Migration) bool { return m.IsRunning() })
}

func (r *InMemoryRepository) ListCompleted() []*Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByCreatedAt(r.migrations, func(m *Migration) bool { return m.Status == StatusCompleted })
}

func (r *InMemoryRepository) ListFailed() []*Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByCreatedAt(r.migrations, func(m *Migration) bool { return m.Status == StatusFailed })
}

func sortedByCreatedAt(migrations map[string]*Migration, filter func(*Migration) bool) []*Migration {
	out := make([]*Migration, 0, len(migrations))
	for _, m := range migrations {
		if filter == nil || filter(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *InMemoryRepository) Update(m *Migration) result.Result[*Migration] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.migrations[m.ID]; !exists {
		return result.Fail[*Migration](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+m.ID))
	}
	r.migrations[m.ID] = m
	return result.Ok(m)
}

func (r *InMemoryRepository) Delete(id string) result.Result[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.migrations[id]; !exists {
		return result.Fail[bool](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	delete(r.migrations, id)
	delete(r.compose, id)
	delete(r.logs, id)
	return result.Ok(true)
}

func (r *InMemoryRepository) UpdateStatus(id string, status MigrationStatus) result.Result[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.migrations[id]
	if !ok {
		return result.Fail[bool](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	m.UpdateStatus(status)
	return result.Ok(true)
}

func (r *InMemoryRepository) AddStep(id string, step MigrationStep) result.Result[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.migrations[id]
	if !ok {
		return result.Fail[bool](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	m.AddStep(step)
	return result.Ok(true)
}

func (r *InMemoryRepository) UpdateStep(id string, step MigrationStep) result.Result[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.migrations[id]
	if !ok {
		return result.Fail[bool](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	for i := range m.Steps {
		if m.Steps[i].ID == step.ID {
			m.Steps[i] = step
			return result.Ok(true)
		}
	}
	return result.Fail[bool](result.NotFound("STEP_NOT_FOUND", "step not found: "+step.ID))
}

func (r *InMemoryRepository) AppendLog(id string, entry LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[id] = append(r.logs[id], entry)
}

func (r *InMemoryRepository) GetMigrationLogs(id string) []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LogEntry(nil), r.logs[id]...)
}

// CleanupOldMigrations deletes migrations whose status is `completed`
// and whose CompletedAt is older than keepDays, returning the count
// removed. Failed and cancelled migrations are kept regardless of age
// since their step records are the only post-mortem evidence for them.
func (r *InMemoryRepository) CleanupOldMigrations(keepDays int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	removed := 0
	for id, m := range r.migrations {
		if m.CompletedAt == nil || m.CompletedAt.After(cutoff) {
			continue
		}
		if m.Status != StatusCompleted {
			continue
		}
		delete(r.migrations, id)
		delete(r.compose, id)
		delete(r.logs, id)
		removed++
	}
	return removed
}

func (r *InMemoryRepository) StoreComposeContent(id string, content ComposeContent) result.Result[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.migrations[id]; !exists {
		return result.Fail[bool](result.NotFound("MIGRATION_NOT_FOUND", "migration not found: "+id))
	}
	r.compose[id] = content
	return result.Ok(true)
}

func (r *InMemoryRepository) GetComposeContent(id string) result.Result[ComposeContent] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, ok := r.compose[id]
	if !ok {
		return result.Fail[ComposeContent](result.NotFound("COMPOSE_CONTENT_NOT_FOUND", "no compose content stored for migration: "+id))
	}
	return result.Ok(content)
}
