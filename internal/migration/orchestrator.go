package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/transdock/transdock/internal/containerstack"
	"github.com/transdock/transdock/internal/eventbus"
	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"github.com/transdock/transdock/internal/zfs"
	"go.uber.org/zap"
)

const defaultVerificationTimeout = 5 * time.Minute

// Orchestrator owns the migration lifecycle: creation, step-list
// composition, the background worker loop, cancellation, and
// progress reporting. It never touches the repository's storage
// directly outside the Repository interface, and never leaks a
// cancellation handle outside the running map.
type Orchestrator struct {
	repo    Repository
	stack   containerstack.Client
	dataset *zfs.DatasetService
	snap    *zfs.SnapshotService
	exec    *executor.Executor
	events  *eventbus.Broadcaster
	logger  *observability.Logger

	globalTimeout       time.Duration
	verificationTimeout time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(
	repo Repository,
	stack containerstack.Client,
	dataset *zfs.DatasetService,
	snap *zfs.SnapshotService,
	exec *executor.Executor,
	events *eventbus.Broadcaster,
	logger *observability.Logger,
	globalTimeout time.Duration,
) *Orchestrator {
	if globalTimeout <= 0 {
		globalTimeout = 12 * time.Hour
	}
	return &Orchestrator{
		repo:                repo,
		stack:               stack,
		dataset:             dataset,
		snap:                snap,
		exec:                exec,
		events:              events,
		logger:              logger,
		globalTimeout:       globalTimeout,
		verificationTimeout: defaultVerificationTimeout,
		running:             make(map[string]context.CancelFunc),
	}
}

// Create builds a migration with its deterministic step list and
// persists it.
func (o *Orchestrator) Create(name string, composePath string, targetHost HostConnection, targetBasePath string, useZFS bool, transferMethod string, sourceHost *HostConnection) result.Result[*Migration] {
	src := Localhost()
	if sourceHost != nil {
		src = *sourceHost
	}

	m := NewMigration(name, src, targetHost, composePath, targetBasePath, time.Now())
	m.UseZFS = useZFS
	if transferMethod != "" {
		m.TransferMethod = transferMethod
	}

	for _, step := range o.composeSteps(m) {
		m.AddStep(step)
	}

	return o.repo.Create(m)
}

// composeSteps builds the step list per the fixed pipeline:
// validation, snapshot_creation (iff use_zfs), data_transfer,
// container_recreation, service_start, verification, cleanup (iff
// cleanup_on_success).
func (o *Orchestrator) composeSteps(m *Migration) []MigrationStep {
	steps := []MigrationStep{
		NewMigrationStep("validation", StepValidation),
	}
	if m.UseZFS {
		steps = append(steps, NewMigrationStep("snapshot_creation", StepSnapshotCreation))
	}
	steps = append(steps,
		NewMigrationStep("data_transfer", StepDataTransfer),
		NewMigrationStep("container_recreation", StepContainerRecreation),
		NewMigrationStep("service_start", StepServiceStart),
		NewMigrationStep("verification", StepVerification),
	)
	if m.CleanupOnSuccess {
		steps = append(steps, NewMigrationStep("cleanup", StepCleanup))
	}
	return steps
}

// Start spawns a background worker for migration id, registering its
// cancel func in the running map. Fails if the migration is already
// running.
func (o *Orchestrator) Start(ctx context.Context, id string) result.Result[bool] {
	o.mu.Lock()
	if _, already := o.running[id]; already {
		o.mu.Unlock()
		return result.Fail[bool](result.Operation("MIGRATION_ALREADY_RUNNING", "migration is already running: "+id))
	}

	findResult := o.repo.FindByID(id)
	if findResult.IsErr() {
		o.mu.Unlock()
		return result.Fail[bool](findResult.Err())
	}
	m := findResult.Must()
	if m.IsRunning() {
		o.mu.Unlock()
		return result.Fail[bool](result.Operation("MIGRATION_ALREADY_RUNNING", "migration is already running: "+id))
	}

	workerCtx, cancel := context.WithTimeout(context.Background(), o.globalTimeout)
	o.running[id] = cancel
	o.mu.Unlock()

	m.Start(time.Now())
	o.repo.Update(m)

	go o.run(workerCtx, id, cancel)

	return result.Ok(true)
}

// Cancel signals the running worker for id and awaits its
// termination. Fails with an Operation error if id is not running.
func (o *Orchestrator) Cancel(id string) result.Result[bool] {
	o.mu.Lock()
	cancel, ok := o.running[id]
	o.mu.Unlock()
	if !ok {
		return result.Fail[bool](result.Operation("MIGRATION_NOT_CANCELLABLE", "migration is not running: "+id))
	}

	cancel()

	// Cooperative: wait for the worker to observe cancellation and
	// remove itself from the running map.
	for {
		o.mu.Lock()
		_, stillRunning := o.running[id]
		o.mu.Unlock()
		if !stillRunning {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	return result.Ok(true)
}

func (o *Orchestrator) Get(id string) result.Result[*Migration] {
	return o.repo.FindByID(id)
}

// Delete removes a migration, refusing while it is running.
func (o *Orchestrator) Delete(id string) result.Result[bool] {
	o.mu.Lock()
	_, running := o.running[id]
	o.mu.Unlock()
	if running {
		return result.Fail[bool](result.Operation("MIGRATION_RUNNING", "cannot delete a running migration"))
	}
	return o.repo.Delete(id)
}

func (o *Orchestrator) List() []*Migration {
	return o.repo.ListAll()
}

// StatusView is the read shape returned by Status, augmenting the
// persisted Migration with live orchestrator-only fields.
type StatusView struct {
	Migration                *Migration
	TaskRunning              bool
	EstimatedRemainingSeconds *float64
}

func (o *Orchestrator) Status(id string) result.Result[StatusView] {
	findResult := o.repo.FindByID(id)
	if findResult.IsErr() {
		return result.Fail[StatusView](findResult.Err())
	}
	m := findResult.Must()

	o.mu.Lock()
	_, running := o.running[id]
	o.mu.Unlock()

	return result.Ok(StatusView{
		Migration:                 m,
		TaskRunning:               running,
		EstimatedRemainingSeconds: m.EstimatedRemainingSeconds(),
	})
}

// ValidationReport is validate_request's return shape.
type ValidationReport struct {
	Valid        bool
	Errors       []string
	Warnings     []string
	Requirements []string
}

// ValidateRequest composes C5's prerequisite check with static
// target-path validation. Never mutates state.
func (o *Orchestrator) ValidateRequest(ctx context.Context, composePath string, targetHost HostConnection, targetBasePath string) ValidationReport {
	report := ValidationReport{Valid: true}

	prereq := o.stack.ValidatePrerequisites(ctx, composePath)
	if prereq.IsErr() {
		report.Valid = false
		report.Errors = append(report.Errors, prereq.Err().Message)
	} else {
		p := prereq.Must()
		if !p.Valid {
			report.Valid = false
			report.Errors = append(report.Errors, p.Error)
		}
		if p.Complexity == "complex" {
			report.Warnings = append(report.Warnings, "stack has more than 5 services or 2 networks; migration may take longer")
		}
		if p.ExternalVolumes {
			report.Warnings = append(report.Warnings, "stack references external volumes; verify they pre-exist on the target host")
		}
	}

	if targetBasePath == "" || targetBasePath[0] != '/' {
		report.Valid = false
		report.Errors = append(report.Errors, "target_base_path must be an absolute path")
	}

	if !targetHost.IsLocalhost() {
		report.Requirements = append(report.Requirements, fmt.Sprintf("ssh reachability to %s", targetHost.String()))
	}

	return report
}

// run is the background worker: it executes the step pipeline
// sequentially, persisting and publishing progress at each
// transition, and removes itself from the running map on exit.
func (o *Orchestrator) run(ctx context.Context, id string, cancel context.CancelFunc) {
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.running, id)
		o.mu.Unlock()
	}()

	findResult := o.repo.FindByID(id)
	if findResult.IsErr() {
		return
	}
	m := findResult.Must()

	for i := range m.Steps {
		step := &m.Steps[i]
		m.UpdateStatus(statusForStep(step.StepType))
		step.Start(time.Now())
		o.repo.Update(m)
		o.publishProgress(m, step)

		err := o.dispatch(ctx, m, step)

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				step.Fail(time.Now(), "global migration timeout exceeded", nil)
				m.Fail(time.Now(), "global migration timeout exceeded")
			} else {
				step.Fail(time.Now(), "cancelled", nil)
				m.Cancel(time.Now())
			}
			o.repo.Update(m)
			o.publishProgress(m, step)
			return
		default:
		}

		if err != nil {
			step.Fail(time.Now(), err.Error(), nil)
			m.Fail(time.Now(), err.Error())
			o.repo.Update(m)
			o.publishProgress(m, step)
			return
		}

		if step.Status == StepStatusPending || step.Status == StepStatusRunning {
			step.Complete(time.Now(), nil)
		}
		o.repo.Update(m)
		o.publishProgress(m, step)
	}

	m.Complete(time.Now())
	o.repo.Update(m)
	o.events.Emit("migration_completed", m.Summary(), "")
}

func statusForStep(stepType MigrationStepType) MigrationStatus {
	switch stepType {
	case StepValidation:
		return StatusPreparing
	case StepSnapshotCreation:
		return StatusCreatingSnapshots
	case StepDataTransfer:
		return StatusTransferringData
	case StepContainerRecreation:
		return StatusRecreatingContainers
	case StepServiceStart:
		return StatusStartingServices
	case StepVerification:
		return StatusVerifying
	default:
		return StatusPreparing
	}
}

func (o *Orchestrator) publishProgress(m *Migration, step *MigrationStep) {
	o.events.Emit("migration_progress", map[string]any{
		"migration_id": m.ID,
		"progress":     m.ProgressPercentage(),
		"status":       string(m.Status),
		"details":      step.Details,
	}, "")
}

func (o *Orchestrator) dispatch(ctx context.Context, m *Migration, step *MigrationStep) error {
	if o.logger != nil {
		o.logger.Info("executing migration step", zap.String("migration_id", m.ID), zap.String("step", step.Name))
	}
	switch step.StepType {
	case StepValidation:
		return o.runValidation(ctx, m, step)
	case StepSnapshotCreation:
		return o.runSnapshotCreation(ctx, m, step)
	case StepDataTransfer:
		return o.runDataTransfer(ctx, m, step)
	case StepContainerRecreation:
		return o.runContainerRecreation(ctx, m, step)
	case StepServiceStart:
		return o.runServiceStart(ctx, m, step)
	case StepVerification:
		return o.runVerification(ctx, m, step)
	case StepCleanup:
		return o.runCleanup(ctx, m, step)
	default:
		return fmt.Errorf("unknown step type: %s", step.StepType)
	}
}

func (o *Orchestrator) verificationTimeoutFor(m *Migration) time.Duration {
	if v, ok := m.Metadata["verification_timeout_seconds"]; ok {
		if seconds, ok := v.(float64); ok && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return o.verificationTimeout
}
