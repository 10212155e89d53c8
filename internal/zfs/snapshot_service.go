package zfs

import (
	"context"
	"fmt"
	"time"

	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"github.com/transdock/transdock/internal/security"
	"go.uber.org/zap"
)

// SnapshotService implements the C3 snapshot operations.
type SnapshotService struct {
	exec   *executor.Executor
	logger *observability.Logger
}

// NewSnapshotService constructs a SnapshotService.
func NewSnapshotService(exec *executor.Executor, logger *observability.Logger) *SnapshotService {
	return &SnapshotService{exec: exec, logger: logger}
}

func (s *SnapshotService) zapLogger() *zap.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger.Logger
}

// Create runs `zfs snapshot [-r] dataset@snapName`.
func (s *SnapshotService) Create(ctx context.Context, dataset, snapName string, recursive bool) result.Result[Snapshot] {
	full := dataset + "@" + snapName
	if r := security.ValidateSnapshotName(full); r.IsErr() {
		return result.Fail[Snapshot](r.Err())
	}

	existing := s.Get(ctx, dataset, snapName)
	if existing.IsOk() {
		return result.Fail[Snapshot](result.AlreadyExists("SNAPSHOT_ALREADY_EXISTS", fmt.Sprintf("snapshot %q already exists", full)))
	}

	args := []string{}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, full)

	cmdResult := s.exec.ExecuteZFS(ctx, "snapshot", args...)
	if cmdResult.IsErr() {
		return result.Fail[Snapshot](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[Snapshot](result.Operation("SNAPSHOT_CREATE_FAILED", cmd.Stderr))
	}
	return s.Get(ctx, dataset, snapName)
}

// Get fetches a single snapshot by dataset and short name.
func (s *SnapshotService) Get(ctx context.Context, dataset, snapName string) result.Result[Snapshot] {
	full := dataset + "@" + snapName
	listResult := s.List(ctx, dataset, false)
	if listResult.IsErr() {
		return result.Fail[Snapshot](listResult.Err())
	}
	for _, snap := range listResult.Must() {
		if snap.FullName() == full {
			return result.Ok(snap)
		}
	}
	return result.Fail[Snapshot](result.NotFound("SNAPSHOT_NOT_FOUND", fmt.Sprintf("snapshot %q does not exist", full)))
}

// Destroy runs `zfs destroy [-f] [-r] dataset@snapName`.
func (s *SnapshotService) Destroy(ctx context.Context, dataset, snapName string, force, recursive bool) result.Result[bool] {
	full := dataset + "@" + snapName
	args := []string{}
	if force {
		args = append(args, "-f")
	}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, full)

	cmdResult := s.exec.ExecuteZFS(ctx, "destroy", args...)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("SNAPSHOT_DESTROY_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// Rollback runs `zfs rollback [-f] dataset@snapName`.
func (s *SnapshotService) Rollback(ctx context.Context, dataset, snapName string, force bool) result.Result[bool] {
	full := dataset + "@" + snapName
	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, full)

	cmdResult := s.exec.ExecuteZFS(ctx, "rollback", args...)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("SNAPSHOT_ROLLBACK_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// List runs `zfs list -H -t snapshot -o name,used,referenced,creation,clones
// [-r] [dataset]`.
func (s *SnapshotService) List(ctx context.Context, dataset string, recursive bool) result.Result[[]Snapshot] {
	args := []string{"-H", "-t", "snapshot", "-o", "name,used,referenced,creation,clones"}
	if recursive {
		args = append(args, "-r")
	}
	if dataset != "" {
		args = append(args, dataset)
	}

	cmdResult := s.exec.ExecuteZFS(ctx, "list", args...)
	if cmdResult.IsErr() {
		return result.Fail[[]Snapshot](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[[]Snapshot](result.Operation("SNAPSHOT_LIST_FAILED", cmd.Stderr))
	}

	lines := splitLines(cmd.Stdout)
	snapshots := make([]Snapshot, 0, len(lines))
	for _, line := range lines {
		if snap, ok := parseSnapshotRow(line, s.zapLogger()); ok {
			snapshots = append(snapshots, snap)
		}
	}
	return result.Ok(snapshots)
}

// CreateIncremental creates `new`, then best-effort creates a bookmark
// `dataset#base_bookmark` pointing at `dataset@base`; bookmark failure
// is logged, not fatal.
func (s *SnapshotService) CreateIncremental(ctx context.Context, dataset, base, newSnap string) result.Result[Snapshot] {
	created := s.Create(ctx, dataset, newSnap, false)
	if created.IsErr() {
		return created
	}

	bookmarkResult := s.exec.ExecuteZFS(ctx, "bookmark", dataset+"@"+base, dataset+"#"+base+"_bookmark")
	if bookmarkResult.IsErr() || !bookmarkResult.Must().Success() {
		if s.logger != nil {
			s.logger.Warn("bookmark creation failed, continuing", zap.String("dataset", dataset), zap.String("base", base))
		}
	}

	return created
}

// RetentionReport is apply_retention's return shape.
type RetentionReport struct {
	ToDelete     int
	DeletedCount int
	Retained     []string
	Failures     []string
}

// ApplyRetention lists snapshots, identifies those older than keepDays,
// excludes any with clones (retained with a warning), and destroys the
// rest with force=true unless dryRun.
func (s *SnapshotService) ApplyRetention(ctx context.Context, dataset string, keepDays int, dryRun bool) result.Result[RetentionReport] {
	listResult := s.List(ctx, dataset, false)
	if listResult.IsErr() {
		return result.Fail[RetentionReport](listResult.Err())
	}

	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	report := RetentionReport{}

	var toDelete []Snapshot
	for _, snap := range listResult.Must() {
		if !snap.Created.Before(cutoff) {
			continue
		}
		if snap.HasClones() {
			report.Retained = append(report.Retained, snap.FullName())
			if s.logger != nil {
				s.logger.Warn("retaining snapshot with clones past retention age", zap.String("snapshot", snap.FullName()))
			}
			continue
		}
		toDelete = append(toDelete, snap)
	}
	report.ToDelete = len(toDelete)

	if dryRun {
		return result.Ok(report)
	}

	for _, snap := range toDelete {
		select {
		case <-ctx.Done():
			return result.Fail[RetentionReport](result.Cancelled("RETENTION_CANCELLED", "retention sweep cancelled"))
		default:
		}

		destroyResult := s.Destroy(ctx, snap.Dataset.String(), snap.ShortName, true, false)
		if destroyResult.IsErr() {
			report.Failures = append(report.Failures, snap.FullName()+": "+destroyResult.Err().Message)
			if s.logger != nil {
				s.logger.Warn("failed to destroy snapshot during retention", zap.String("snapshot", snap.FullName()))
			}
			continue
		}
		report.DeletedCount++
	}

	return result.Ok(report)
}

// Send streams `zfs send` directly into a remote `zfs receive` over
// ssh, invoked from the orchestrator's data_transfer step.
func (s *SnapshotService) Send(ctx context.Context, snap Snapshot, targetDataset string, sshCfg executor.SSHConfig) result.Result[bool] {
	sendResult := s.exec.SendToRemote(ctx, []string{snap.FullName()}, sshCfg, []string{targetDataset})
	if sendResult.IsErr() {
		return result.Fail[bool](sendResult.Err())
	}
	cmd := sendResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Remote("SNAPSHOT_SEND_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}
